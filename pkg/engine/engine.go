// Package engine owns the active wallpaper slot. It serialises switches from
// the user and the scheduler, tags every switch with a generation so that late
// callbacks from superseded wallpapers are ignored, and publishes a status
// snapshot after every change.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/platform"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// Platform resolves specs into runnable wallpapers.
type Platform interface {
	Resolve(spec wallpaper.Spec, hooks platform.Hooks) (wallpaper.Wallpaper, error)
	CurrentWallpaper(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// Engine is the single owner of the active wallpaper.
type Engine struct {
	platform Platform
	// slot admits one switch at a time.
	slot *semaphore.Weighted
	gen  util.Generation
	subs listeners

	mu          sync.Mutex
	active      wallpaper.Wallpaper
	starting    wallpaper.Wallpaper
	startCancel context.CancelFunc
	status      Status
	sched       *schedule.Scheduler
}

// New creates an Engine with an empty slot.
func New(p Platform) *Engine {
	return &Engine{
		platform: p,
		slot:     semaphore.NewWeighted(1),
		status:   Status{State: wallpaper.Stopped, Since: time.Now()},
	}
}

// Apply switches to spec on behalf of a user. It fails with a Busy error
// instead of waiting when another switch is in flight.
func (e *Engine) Apply(ctx context.Context, spec wallpaper.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if !e.slot.TryAcquire(1) {
		return apperror.New(apperror.KindBusy, "apply "+spec.String(), "another switch is in progress")
	}
	defer e.slot.Release(1)
	return e.switchTo(ctx, spec)
}

// Switch switches to spec on behalf of the scheduler, waiting for any switch in
// flight to finish first.
func (e *Engine) Switch(ctx context.Context, spec wallpaper.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := e.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.slot.Release(1)
	return e.switchTo(ctx, spec)
}

// resolve builds a wallpaper whose callbacks are tagged with the generation
// stored in the returned owner once the wallpaper takes the slot.
func (e *Engine) resolve(spec wallpaper.Spec) (wallpaper.Wallpaper, *atomic.Uint64, error) {
	owner := new(atomic.Uint64)
	w, err := e.platform.Resolve(spec, platform.Hooks{
		OnState: func(w wallpaper.Wallpaper, s wallpaper.State) {
			e.onState(owner.Load(), w, s)
		},
		OnFailure: func(w wallpaper.Wallpaper, err error) {
			e.onFailure(owner.Load(), w, err)
		},
	})
	return w, owner, err
}

// switchTo runs the switch protocol. The caller holds the slot.
func (e *Engine) switchTo(ctx context.Context, spec wallpaper.Spec) error {
	next, owner, err := e.resolve(spec)
	if err == nil {
		err = next.Check()
	}
	if err != nil {
		// Nothing was touched; the running wallpaper stays.
		log.Printf("Apply %s rejected: %v", spec, err)
		e.recordError(err)
		return err
	}

	gen, startCtx, cancel, prev := e.begin(ctx, next, owner, true)
	defer cancel()

	var prevSpec *wallpaper.Spec
	if prev != nil {
		s := prev.Spec()
		prevSpec = &s
		if err := prev.Stop(ctx); err != nil {
			log.Printf("Stopping %s: %v", s, err)
		}
	}

	err = e.finish(gen, next, next.Start(startCtx))
	if err == nil {
		return nil
	}
	if !e.gen.IsCurrent(gen) {
		return err
	}

	log.Printf("Apply %s failed: %v", spec, err)
	e.recordError(err)
	if prevSpec != nil {
		e.rollback(ctx, *prevSpec)
	}
	return err
}

// begin gives the slot to next under a fresh generation and returns the
// wallpaper it displaced. A rollback keeps the error that caused it.
func (e *Engine) begin(ctx context.Context, next wallpaper.Wallpaper, owner *atomic.Uint64, clearErr bool) (uint64, context.Context, context.CancelFunc, wallpaper.Wallpaper) {
	gen := e.gen.Next()
	owner.Store(gen)
	startCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	prev := e.active
	e.active = nil
	e.starting = next
	e.startCancel = cancel
	if clearErr {
		e.status.LastError = ""
	}
	e.mu.Unlock()
	return gen, startCtx, cancel, prev
}

// finish settles a start begun with begin. A start superseded by Stop is torn
// down here.
func (e *Engine) finish(gen uint64, next wallpaper.Wallpaper, startErr error) error {
	e.mu.Lock()
	if e.starting == next {
		e.starting = nil
		e.startCancel = nil
	}
	current := e.gen.IsCurrent(gen)
	if startErr == nil && current {
		e.active = next
	}
	e.mu.Unlock()

	if !current {
		if err := next.Stop(context.Background()); err != nil {
			log.Printf("Stopping superseded %s: %v", next.Spec(), err)
		}
		if startErr == nil {
			startErr = wallpaper.ErrStartAborted
		}
	}
	return startErr
}

// rollback restarts the wallpaper that a failed switch displaced.
func (e *Engine) rollback(ctx context.Context, spec wallpaper.Spec) {
	log.Printf("Restoring previous wallpaper %s", spec)
	w, owner, err := e.resolve(spec)
	if err != nil {
		log.Printf("Rollback to %s failed: %v", spec, err)
		return
	}
	gen, startCtx, cancel, _ := e.begin(ctx, w, owner, false)
	defer cancel()
	if err := e.finish(gen, w, w.Start(startCtx)); err != nil {
		log.Printf("Rollback to %s failed: %v", spec, err)
	}
}

// Stop stops the active wallpaper. It cancels a start in flight and is
// idempotent.
func (e *Engine) Stop(ctx context.Context) error {
	// Supersede whatever is in flight before waiting for the slot.
	e.gen.Next()
	e.mu.Lock()
	starting, cancel := e.starting, e.startCancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if starting != nil {
		if err := starting.Stop(ctx); err != nil {
			log.Printf("Cancelling start of %s: %v", starting.Spec(), err)
		}
	}

	if err := e.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.slot.Release(1)

	e.mu.Lock()
	w := e.active
	e.active = nil
	e.mu.Unlock()
	if w != nil {
		if err := w.Stop(ctx); err != nil {
			return err
		}
		log.Printf("Stopped %s", w.Spec())
	}

	e.mu.Lock()
	if e.status.State == wallpaper.Stopped && w == nil {
		e.mu.Unlock()
		return nil
	}
	e.status = Status{
		State:      wallpaper.Stopped,
		Since:      time.Now(),
		Generation: e.gen.Current(),
		LastError:  e.status.LastError,
	}
	snap := e.status
	e.mu.Unlock()
	e.subs.publish(snap)
	return nil
}

func (e *Engine) activeWallpaper() (wallpaper.Wallpaper, wallpaper.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.status.State
}

// Pause pauses the active wallpaper.
func (e *Engine) Pause(ctx context.Context) error {
	w, state := e.activeWallpaper()
	if w == nil {
		return apperror.InvalidState("pause", state)
	}
	return w.Pause(ctx)
}

// Resume resumes the active wallpaper.
func (e *Engine) Resume(ctx context.Context) error {
	w, state := e.activeWallpaper()
	if w == nil {
		return apperror.InvalidState("resume", state)
	}
	return w.Resume(ctx)
}

// TogglePause resumes a paused wallpaper and pauses a running one.
func (e *Engine) TogglePause(ctx context.Context) error {
	if w, _ := e.activeWallpaper(); w != nil && w.State() == wallpaper.Paused {
		return e.Resume(ctx)
	}
	return e.Pause(ctx)
}

// Status returns the current snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers fn for every status change and returns a func that
// unregisters it. fn must not block.
func (e *Engine) Subscribe(fn func(Status)) func() {
	return e.subs.add(fn)
}

// Current returns the OS wallpaper image, if it can be determined.
func (e *Engine) Current(ctx context.Context) (string, bool) {
	return e.platform.CurrentWallpaper(ctx)
}

// Clear stops the active wallpaper and removes the OS wallpaper image. Stop
// alone leaves the OS image in place.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.Stop(ctx); err != nil {
		return err
	}
	return e.platform.Clear(ctx)
}

func (e *Engine) recordError(err error) {
	e.mu.Lock()
	e.status.LastError = err.Error()
	snap := e.status
	e.mu.Unlock()
	e.subs.publish(snap)
}

func (e *Engine) onState(gen uint64, w wallpaper.Wallpaper, s wallpaper.State) {
	e.mu.Lock()
	if !e.gen.IsCurrent(gen) {
		e.mu.Unlock()
		return
	}
	st := Status{
		State:      s,
		Since:      time.Now(),
		Generation: gen,
		LastError:  e.status.LastError,
	}
	if s != wallpaper.Stopped {
		st.Type = w.Type().String()
		st.Path = w.Path()
		st.Degraded = w.Degraded()
		if h, ok := w.Process(); ok {
			st.PID = h.PID
		}
	}
	e.status = st
	e.mu.Unlock()
	e.subs.publish(st)
}

func (e *Engine) onFailure(gen uint64, w wallpaper.Wallpaper, err error) {
	e.mu.Lock()
	if !e.gen.IsCurrent(gen) {
		e.mu.Unlock()
		log.Debugf("Ignoring failure of superseded %s: %v", w.Spec(), err)
		return
	}
	if e.active == w {
		e.active = nil
	}
	e.status = Status{
		State:      wallpaper.Stopped,
		Since:      time.Now(),
		Generation: gen,
		LastError:  err.Error(),
	}
	snap := e.status
	e.mu.Unlock()

	log.Printf("Active wallpaper %s failed: %v", w.Spec(), err)
	e.subs.publish(snap)
}
