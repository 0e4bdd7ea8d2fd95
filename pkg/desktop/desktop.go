// Package desktop places wallpaper content windows behind the desktop icons.
//
// The background host (the Windows WorkerW, the X11 root) is owned by the OS and
// is looked up again for every embedding; nothing here keeps a reference to it
// once an embedding has been created.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// WindowID is a native window handle (HWND or X11 window id).
type WindowID uint64

// Rect is a screen rectangle in pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Host is a located background host.
type Host struct {
	ID WindowID
	// Below is a sibling the content must stay beneath (an X11 icon window), or 0.
	Below WindowID
}

// FallbackMode decides what to do when no background host can be found.
type FallbackMode int

const (
	// FallbackFullscreen uses a borderless topmost full-screen surface that covers the icons.
	FallbackFullscreen FallbackMode = iota
	// FallbackRefuse fails the embedding with a WindowEmbedError.
	FallbackRefuse
)

// ParseFallback maps a config value to a FallbackMode.
func ParseFallback(s string) (FallbackMode, error) {
	switch s {
	case config.FallbackFullscreen, "":
		return FallbackFullscreen, nil
	case config.FallbackRefuse:
		return FallbackRefuse, nil
	}
	return FallbackRefuse, apperror.Config("embed fallback", "unknown mode %q", s)
}

var (
	errHostNotFound   = errors.New("desktop background host not found")
	errWindowNotFound = errors.New("window not found")
)

// Embedding is a content window placed on the desktop. It is owned by the
// wallpaper that requested it and released through WindowManager.Release.
type Embedding struct {
	Window WindowID
	Bounds Rect
	// Degraded is set when the content covers the icons because no background
	// host was found.
	Degraded bool
	// Layer is set when the renderer draws its own background layer surface
	// (Wayland); Window is then zero and Outputs lists the target outputs.
	Layer   bool
	Outputs []string

	surface surface
	release sync.Once
}

// WindowManager embeds content windows behind the desktop icons.
type WindowManager interface {
	// CreateSurface creates an empty content window for a renderer to draw into.
	CreateSurface(ctx context.Context) (*Embedding, error)
	// Adopt embeds the top-level window owned by pid, waiting for it to appear.
	Adopt(ctx context.Context, pid int) (*Embedding, error)
	// Release undoes an embedding. It is idempotent and tolerates the host being gone.
	Release(e *Embedding)
	// Layered reports whether renderers must draw their own layer surfaces.
	Layered() bool
}

type surface interface {
	id() WindowID
	destroy() error
}

// backend holds the platform primitives used by Manager.
type backend interface {
	name() string
	layered() bool
	outputs(ctx context.Context) ([]string, error)
	// findHost performs locate, handshake and enumerate. It returns
	// errHostNotFound when no candidate exists yet.
	findHost(ctx context.Context) (Host, error)
	screen() (Rect, error)
	// createSurface creates a content window under host, or a degraded
	// full-screen window when host.ID is zero.
	createSurface(host Host, r Rect) (surface, error)
	// adopt embeds the window owned by pid. It returns errWindowNotFound
	// when the process has not mapped a window yet.
	adopt(pid int, host Host, r Rect) (surface, error)
}

// Options tunes host discovery.
type Options struct {
	Attempts int
	Backoff  time.Duration
	Fallback FallbackMode
	// AdoptTimeout bounds how long Adopt waits for a process window.
	AdoptTimeout time.Duration
}

// OptionsFromConfig converts the desktop section of the configuration.
func OptionsFromConfig(c config.DesktopConfig) (Options, error) {
	fb, err := ParseFallback(c.Fallback)
	if err != nil {
		return Options{}, err
	}
	return Options{Attempts: c.EmbedAttempts, Backoff: c.EmbedBackoff, Fallback: fb}, nil
}

// Manager implements WindowManager on top of a platform backend.
type Manager struct {
	backend backend
	opts    Options
}

// New returns a Manager for the current platform and session.
func New(opts Options) *Manager {
	return newManager(newBackend(), opts)
}

func newManager(b backend, opts Options) *Manager {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.AdoptTimeout <= 0 {
		opts.AdoptTimeout = 10 * time.Second
	}
	return &Manager{backend: b, opts: opts}
}

// Name returns the backend name.
func (m *Manager) Name() string {
	return m.backend.name()
}

// Layered implements WindowManager.
func (m *Manager) Layered() bool {
	return m.backend.layered()
}

// locateHost retries host discovery with exponential backoff and applies the
// fallback mode when every attempt fails.
func (m *Manager) locateHost(ctx context.Context) (Host, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		host, err := m.backend.findHost(ctx)
		if err == nil {
			return host, false, nil
		}
		if apperror.KindOf(err) == apperror.KindUnsupportedPlatform {
			return Host{}, false, err
		}
		lastErr = err
		log.Debugf("Desktop host lookup %d/%d on %s: %v", attempt, m.opts.Attempts, m.backend.name(), err)

		if attempt == m.opts.Attempts {
			break
		}
		timer := time.NewTimer(m.opts.Backoff << (attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Host{}, false, ctx.Err()
		case <-timer.C:
		}
	}

	if m.opts.Fallback == FallbackRefuse {
		return Host{}, false, apperror.Wrap(apperror.KindWindowEmbed, "locate desktop host",
			fmt.Errorf("%w after %d attempts", lastErr, m.opts.Attempts))
	}
	log.Printf("Desktop host not found after %d attempts, using full-screen fallback", m.opts.Attempts)
	return Host{}, true, nil
}

// CreateSurface implements WindowManager.
func (m *Manager) CreateSurface(ctx context.Context) (*Embedding, error) {
	if m.backend.layered() {
		outputs, err := m.backend.outputs(ctx)
		if err != nil {
			return nil, embedError("list outputs", err)
		}
		return &Embedding{Layer: true, Outputs: outputs}, nil
	}

	host, degraded, err := m.locateHost(ctx)
	if err != nil {
		return nil, err
	}
	r, err := m.backend.screen()
	if err != nil {
		return nil, embedError("screen bounds", err)
	}
	s, err := m.backend.createSurface(host, r)
	if err != nil {
		return nil, embedError("create surface", err)
	}
	log.Debugf("Embedded surface %#x under host %#x (degraded=%v)", s.id(), host.ID, degraded)
	return &Embedding{Window: s.id(), Bounds: r, Degraded: degraded, surface: s}, nil
}

// Adopt implements WindowManager.
func (m *Manager) Adopt(ctx context.Context, pid int) (*Embedding, error) {
	if m.backend.layered() {
		return nil, apperror.Unsupported("adopt window", m.backend.name())
	}

	host, degraded, err := m.locateHost(ctx)
	if err != nil {
		return nil, err
	}
	r, err := m.backend.screen()
	if err != nil {
		return nil, embedError("screen bounds", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.AdoptTimeout)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		s, err := m.backend.adopt(pid, host, r)
		if err == nil {
			return &Embedding{Window: s.id(), Bounds: r, Degraded: degraded, surface: s}, nil
		}
		if !errors.Is(err, errWindowNotFound) {
			return nil, embedError("adopt window", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperror.New(apperror.KindWindowEmbed, "adopt window",
					"pid %d mapped no window within %s", pid, m.opts.AdoptTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release implements WindowManager.
func (m *Manager) Release(e *Embedding) {
	if e == nil {
		return
	}
	e.release.Do(func() {
		if e.surface == nil {
			return
		}
		if err := e.surface.destroy(); err != nil {
			log.Printf("Releasing surface %#x: %v", e.Window, err)
		}
	})
}

// embedError classifies err as a WindowEmbedError unless it already carries a kind.
func embedError(op string, err error) error {
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	return apperror.Wrap(apperror.KindWindowEmbed, op, err)
}

// unsupportedBackend is used where no embedding mechanism exists.
type unsupportedBackend struct {
	platform string
}

func (b unsupportedBackend) name() string  { return b.platform }
func (b unsupportedBackend) layered() bool { return false }

func (b unsupportedBackend) outputs(context.Context) ([]string, error) {
	return nil, apperror.Unsupported("list outputs", b.platform)
}

func (b unsupportedBackend) findHost(context.Context) (Host, error) {
	return Host{}, apperror.Unsupported("locate desktop host", b.platform)
}

func (b unsupportedBackend) screen() (Rect, error) {
	return Rect{}, apperror.Unsupported("screen bounds", b.platform)
}

func (b unsupportedBackend) createSurface(Host, Rect) (surface, error) {
	return nil, apperror.Unsupported("create surface", b.platform)
}

func (b unsupportedBackend) adopt(int, Host, Rect) (surface, error) {
	return nil, apperror.Unsupported("adopt window", b.platform)
}
