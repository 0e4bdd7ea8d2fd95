package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/platform"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
)

// behaviour configures the fake wallpapers resolved for one path.
type behaviour struct {
	checkErr error
	startErr error
	// gate, when set, holds Start until it is closed or the start is cancelled.
	gate chan struct{}
}

type fakePlatform struct {
	mu         sync.Mutex
	behaviours map[string]behaviour
	resolved   []*fakeWallpaper
	resolveErr error
	current    string

	live    atomic.Int32
	maxLive atomic.Int32
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{behaviours: make(map[string]behaviour)}
}

func (p *fakePlatform) set(path string, b behaviour) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.behaviours[path] = b
}

func (p *fakePlatform) Resolve(spec wallpaper.Spec, hooks platform.Hooks) (wallpaper.Wallpaper, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	w := &fakeWallpaper{
		spec:      spec,
		hooks:     hooks,
		b:         p.behaviours[spec.Path],
		platform:  p,
		startDone: make(chan struct{}),
	}
	p.resolved = append(p.resolved, w)
	return w, nil
}

func (p *fakePlatform) CurrentWallpaper(context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current != ""
}

func (p *fakePlatform) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = ""
	return nil
}

func (p *fakePlatform) all() []*fakeWallpaper {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeWallpaper(nil), p.resolved...)
}

func (p *fakePlatform) last() *fakeWallpaper {
	all := p.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// fakeWallpaper follows the wallpaper state machine without any process.
type fakeWallpaper struct {
	spec     wallpaper.Spec
	hooks    platform.Hooks
	b        behaviour
	platform *fakePlatform

	mu        sync.Mutex
	state     wallpaper.State
	startDone chan struct{}
	stops     int
}

var _ wallpaper.Wallpaper = (*fakeWallpaper)(nil)

func (w *fakeWallpaper) set(s wallpaper.State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	if w.hooks.OnState != nil {
		w.hooks.OnState(w, s)
	}
}

func (w *fakeWallpaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != wallpaper.Stopped {
		w.mu.Unlock()
		return apperror.InvalidState("start", w.state)
	}
	w.mu.Unlock()
	defer close(w.startDone)

	w.set(wallpaper.Starting)
	if w.b.gate != nil {
		select {
		case <-w.b.gate:
		case <-ctx.Done():
			w.set(wallpaper.Stopped)
			return wallpaper.ErrStartAborted
		}
	}
	if w.b.startErr != nil {
		w.set(wallpaper.Stopped)
		return w.b.startErr
	}

	n := w.platform.live.Add(1)
	for {
		m := w.platform.maxLive.Load()
		if n <= m || w.platform.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	w.set(wallpaper.Running)
	return nil
}

func (w *fakeWallpaper) Stop(context.Context) error {
	w.mu.Lock()
	w.stops++
	switch w.state {
	case wallpaper.Stopped, wallpaper.Stopping:
		w.mu.Unlock()
		return nil
	case wallpaper.Starting:
		w.mu.Unlock()
		<-w.startDone
		return w.Stop(context.Background())
	}
	w.state = wallpaper.Stopping
	w.mu.Unlock()

	w.platform.live.Add(-1)
	w.set(wallpaper.Stopped)
	return nil
}

// transition moves from one state to another or reports InvalidState.
func (w *fakeWallpaper) transition(op string, from, to wallpaper.State) error {
	w.mu.Lock()
	if w.state != from {
		s := w.state
		w.mu.Unlock()
		return apperror.InvalidState(op, s)
	}
	w.state = to
	w.mu.Unlock()
	if w.hooks.OnState != nil {
		w.hooks.OnState(w, to)
	}
	return nil
}

func (w *fakeWallpaper) Pause(context.Context) error {
	return w.transition("pause", wallpaper.Running, wallpaper.Paused)
}

func (w *fakeWallpaper) Resume(context.Context) error {
	return w.transition("resume", wallpaper.Paused, wallpaper.Running)
}

func (w *fakeWallpaper) Type() wallpaper.Type { return w.spec.Type }
func (w *fakeWallpaper) Path() string         { return w.spec.Path }
func (w *fakeWallpaper) Spec() wallpaper.Spec { return w.spec }
func (w *fakeWallpaper) Check() error         { return w.b.checkErr }
func (w *fakeWallpaper) Degraded() bool       { return false }

func (w *fakeWallpaper) Process() (process.Handle, bool) {
	if w.State() == wallpaper.Stopped {
		return process.Handle{}, false
	}
	return process.Handle{PID: 4242}, true
}

func (w *fakeWallpaper) State() wallpaper.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *fakeWallpaper) stopCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stops
}

// crash simulates the supervisor reporting an unexpected exit.
func (w *fakeWallpaper) crash(err error) {
	if w.State() == wallpaper.Running {
		w.platform.live.Add(-1)
	}
	w.set(wallpaper.Stopped)
	if w.hooks.OnFailure != nil {
		w.hooks.OnFailure(w, err)
	}
}

var errExited = errors.New("renderer exited with status 1")

func video(path string) wallpaper.Spec {
	return wallpaper.Spec{Type: wallpaper.TypeVideo, Path: path, Options: wallpaper.Options{Loop: true}}
}

// statusLog records published snapshots.
type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, s)
}

func (l *statusLog) states() []wallpaper.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wallpaper.State, 0, len(l.seen))
	for _, s := range l.seen {
		out = append(out, s.State)
	}
	return out
}
