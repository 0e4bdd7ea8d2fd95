// Package api is the local control surface used by the configuration UI. It
// exposes the engine over JSON/HTTP and pushes status changes over a WebSocket.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dixieflatline76/AetherDesk/pkg/engine"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// DefaultAddr is the loopback address the server listens on.
const DefaultAddr = "127.0.0.1:49452"

// Controller is the part of the engine the server drives.
type Controller interface {
	Apply(ctx context.Context, spec wallpaper.Spec) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Clear(ctx context.Context) error
	Status() engine.Status
	Current(ctx context.Context) (string, bool)
	Subscribe(fn func(engine.Status)) func()

	ScheduleItems() ([]schedule.Item, error)
	ScheduleAdd(it schedule.Item) (schedule.Item, error)
	ScheduleUpdate(it schedule.Item) error
	ScheduleRemove(id string) error
	ScheduleToggle(id string) (schedule.Item, error)
	ScheduleRearm(id string) error
}

// Options configures a Server.
type Options struct {
	Addr string
	// Rate and Burst throttle the mutating endpoints.
	Rate  float64
	Burst int
	// Library is the directory listed under /library. Empty disables it.
	Library string
}

// Server represents the local REST/WebSocket server.
type Server struct {
	ctl        Controller
	opts       Options
	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader
	limiter    *rate.Limiter

	// WebSocket management
	clients   map[*client]bool
	clientsMu sync.Mutex

	unsubscribe func()
}

// NewServer creates a new API server for ctl and subscribes to its status.
// Close releases the subscription.
func NewServer(ctl Controller, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	s := &Server{
		ctl:  ctl,
		opts: opts,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: localOrigin,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		clients: make(map[*client]bool),
	}
	s.setupRoutes()
	s.unsubscribe = ctl.Subscribe(s.broadcastStatus)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /current", s.handleCurrent)

	s.mux.HandleFunc("POST /apply", s.throttle(s.handleApply))
	s.mux.HandleFunc("POST /stop", s.throttle(s.handleStop))
	s.mux.HandleFunc("POST /pause", s.throttle(s.handlePause))
	s.mux.HandleFunc("POST /resume", s.throttle(s.handleResume))
	s.mux.HandleFunc("POST /clear", s.throttle(s.handleClear))

	s.mux.HandleFunc("GET /schedule", s.handleScheduleList)
	s.mux.HandleFunc("POST /schedule", s.throttle(s.handleScheduleAdd))
	s.mux.HandleFunc("PUT /schedule/{id}", s.throttle(s.handleScheduleUpdate))
	s.mux.HandleFunc("DELETE /schedule/{id}", s.throttle(s.handleScheduleRemove))
	s.mux.HandleFunc("POST /schedule/{id}/toggle", s.throttle(s.handleScheduleToggle))
	s.mux.HandleFunc("POST /schedule/{id}/rearm", s.throttle(s.handleScheduleRearm))

	s.mux.HandleFunc("GET /library", s.handleLibrary)
	s.mux.HandleFunc("GET /library/assets/{name}", s.handleLibraryAsset)
}

// localOrigin accepts clients without an Origin header (native UIs) and pages
// served from the loopback interface.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// throttle rejects requests beyond the configured rate.
func (s *Server) throttle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests", Kind: "rate limited"})
			return
		}
		next(w, r)
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Control API listening on %s", s.opts.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close unsubscribes from the engine and drops all WebSocket clients.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
