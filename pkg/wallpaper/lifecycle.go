package wallpaper

import (
	"context"
	"errors"
	"sync"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// ErrStartAborted is returned by Start when Stop was called before it finished.
var ErrStartAborted = errors.New("start aborted by stop")

// wallpaper runs the shared state machine around a driver.
type wallpaper struct {
	spec Spec
	drv  driver
	deps Deps

	mu          sync.Mutex
	state       State
	cancelStart context.CancelFunc
	startDone   chan struct{}
	stopDone    chan struct{}
	// startCrash is a renderer failure reported before Start settled.
	startCrash error
}

func (w *wallpaper) Type() Type     { return w.spec.Type }
func (w *wallpaper) Path() string   { return w.spec.Path }
func (w *wallpaper) Spec() Spec     { return w.spec.Clone() }
func (w *wallpaper) Check() error   { return w.drv.check() }
func (w *wallpaper) Degraded() bool { return w.drv.degraded() }

func (w *wallpaper) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *wallpaper) Process() (process.Handle, bool) {
	return w.drv.handle()
}

// setLocked changes state and returns a func that publishes the change. The
// caller runs it after unlocking.
func (w *wallpaper) setLocked(s State) func() {
	w.state = s
	return func() {
		if w.deps.OnState != nil {
			w.deps.OnState(w, s)
		}
	}
}

func (w *wallpaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != Stopped {
		from := w.state
		w.mu.Unlock()
		return apperror.InvalidState("start "+w.spec.String(), from)
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancelStart = cancel
	done := make(chan struct{})
	w.startDone = done
	publish := w.setLocked(Starting)
	w.mu.Unlock()
	publish()

	log.Debugf("Starting %s wallpaper %s", w.spec.Type, w.spec.Path)
	err := w.drv.start(ctx, w.fail)
	cancel()

	w.mu.Lock()
	w.cancelStart = nil
	close(done)
	crash := w.startCrash
	w.startCrash = nil
	if w.state == Stopping {
		// Stop owns the teardown from here.
		w.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrStartAborted
	}
	if err != nil {
		publish = w.setLocked(Stopped)
		w.mu.Unlock()
		publish()
		return err
	}
	if crash != nil {
		// The renderer died between spawn and now; monitoring has ended.
		stopDone := make(chan struct{})
		w.stopDone = stopDone
		publish = w.setLocked(Stopping)
		w.mu.Unlock()
		publish()

		log.Printf("Wallpaper %s failed while starting: %v", w.spec, crash)
		w.drv.stop()

		w.mu.Lock()
		publish = w.setLocked(Stopped)
		close(stopDone)
		w.mu.Unlock()
		publish()
		return crash
	}
	publish = w.setLocked(Running)
	w.mu.Unlock()
	publish()
	log.Printf("Wallpaper running: %s", w.spec)
	return nil
}

func (w *wallpaper) Stop(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case Stopped:
		w.mu.Unlock()
		return nil
	case Stopping:
		done := w.stopDone
		w.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var startDone chan struct{}
	if w.state == Starting {
		w.cancelStart()
		startDone = w.startDone
	}
	stopDone := make(chan struct{})
	w.stopDone = stopDone
	publish := w.setLocked(Stopping)
	w.mu.Unlock()
	publish()

	if startDone != nil {
		// The driver sees the cancelled context and unwinds on its own; its
		// partial resources are released below either way.
		<-startDone
	}
	w.drv.stop()

	w.mu.Lock()
	publish = w.setLocked(Stopped)
	close(stopDone)
	w.mu.Unlock()
	publish()
	log.Debugf("Stopped %s", w.spec)
	return nil
}

func (w *wallpaper) Pause(context.Context) error {
	w.mu.Lock()
	if w.state != Running {
		from := w.state
		w.mu.Unlock()
		return apperror.InvalidState("pause "+w.spec.String(), from)
	}
	if err := w.drv.pause(); err != nil {
		w.mu.Unlock()
		return err
	}
	publish := w.setLocked(Paused)
	w.mu.Unlock()
	publish()
	return nil
}

func (w *wallpaper) Resume(context.Context) error {
	w.mu.Lock()
	if w.state != Paused {
		from := w.state
		w.mu.Unlock()
		return apperror.InvalidState("resume "+w.spec.String(), from)
	}
	if err := w.drv.resume(); err != nil {
		w.mu.Unlock()
		return err
	}
	publish := w.setLocked(Running)
	w.mu.Unlock()
	publish()
	return nil
}

// fail handles a renderer crash that the supervisor gave up on. A crash while
// starting is handed to Start; one while stopping is ignored.
func (w *wallpaper) fail(err error) {
	w.mu.Lock()
	if w.state == Starting {
		w.startCrash = err
		w.mu.Unlock()
		return
	}
	if w.state != Running && w.state != Paused {
		w.mu.Unlock()
		log.Debugf("Ignoring renderer failure for %s in state %s: %v", w.spec, w.state, err)
		return
	}
	stopDone := make(chan struct{})
	w.stopDone = stopDone
	publish := w.setLocked(Stopping)
	w.mu.Unlock()
	publish()

	log.Printf("Wallpaper %s failed: %v", w.spec, err)
	w.drv.stop()

	w.mu.Lock()
	publish = w.setLocked(Stopped)
	close(stopDone)
	w.mu.Unlock()
	publish()

	if w.deps.OnFailure != nil {
		w.deps.OnFailure(w, err)
	}
}
