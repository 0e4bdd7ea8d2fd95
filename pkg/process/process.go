package process

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dixieflatline76/AetherDesk/util/log"
)

// incarnation is one launched instance of a supervised command.
type incarnation struct {
	proc    Proc
	started time.Time
	exited  chan struct{}
	err     error
}

// Process is a supervised renderer. It may be relaunched by the crash policy, so
// the underlying pid can change over its lifetime.
type Process struct {
	sup       *Supervisor
	path      string
	cmd       Command
	onFailure func(error)

	mu       sync.Mutex
	current  *incarnation
	restarts int

	stopCh      chan struct{}
	stopOnce    sync.Once
	monitorDone chan struct{}
}

func (p *Process) launch(ctx context.Context) error {
	inc, err := p.sup.startProcess(ctx, p.path, p.cmd)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.current = inc
	p.mu.Unlock()
	return nil
}

// Handle returns the identity of the current incarnation.
func (p *Process) Handle() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := Handle{WindowID: p.cmd.WindowID, Binary: p.path}
	if p.current != nil {
		h.PID = p.current.proc.Pid()
		h.Started = p.current.started
	}
	return h
}

// Restarts returns how many times the crash policy relaunched the process.
func (p *Process) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// Suspend pauses the renderer without terminating it.
func (p *Process) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.proc.Suspend()
}

// Resume continues a suspended renderer.
func (p *Process) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.proc.Resume()
}

// Disarm stops liveness monitoring so that an exit from now on is treated as
// expected. It is called before the embedding window is torn down.
func (p *Process) Disarm() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.monitorDone
}

// Stop disarms the monitor, then terminates and reaps the process. Safe to call
// more than once and after the process already exited.
func (p *Process) Stop() {
	p.Disarm()

	p.mu.Lock()
	inc := p.current
	p.mu.Unlock()
	if inc != nil {
		p.sup.reap(inc)
	}
}

func (p *Process) monitor() {
	failure := p.watch()
	close(p.monitorDone)
	if failure != nil && p.onFailure != nil {
		p.onFailure(failure)
	}
}

// watch polls the current incarnation until Disarm, or until the crash policy
// gives up and returns the failure to surface.
func (p *Process) watch() error {
	ticker := time.NewTicker(p.sup.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return nil
		case <-ticker.C:
		}

		p.mu.Lock()
		inc := p.current
		p.mu.Unlock()

		select {
		case <-inc.exited:
		default:
			continue
		}

		select {
		case <-p.stopCh:
			return nil
		default:
		}

		log.Printf("Renderer %s (pid %d) exited: %v", p.path, inc.proc.Pid(), inc.err)
		if err := p.recover(inc); err != nil {
			return err
		}
	}
}

// recover applies the crash policy after inc exited. It returns nil once a new
// incarnation is running, or the error to surface.
func (p *Process) recover(dead *incarnation) error {
	opts := p.sup.opts
	failure := fmt.Errorf("%w: %s (pid %d): %v", ErrExited, p.path, dead.proc.Pid(), dead.err)
	if opts.Policy != PolicyRestart {
		return failure
	}

	p.mu.Lock()
	if time.Since(dead.started) >= opts.StableAfter {
		p.restarts = 0
	}
	p.mu.Unlock()

	for {
		p.mu.Lock()
		attempt := p.restarts
		if attempt >= opts.MaxRestarts {
			p.mu.Unlock()
			return fmt.Errorf("%w; gave up after %d restarts", failure, attempt)
		}
		p.restarts++
		p.mu.Unlock()

		backoff := opts.RestartBackoff << attempt
		log.Printf("Restarting %s in %s (attempt %d/%d)", p.path, backoff, attempt+1, opts.MaxRestarts)

		timer := time.NewTimer(backoff)
		select {
		case <-p.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-p.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		err := p.launch(ctx)
		if err == nil && p.cmd.OnRestart != nil {
			if herr := p.cmd.OnRestart(ctx, p.Handle()); herr != nil {
				cancel()
				select {
				case <-p.stopCh:
					return nil
				default:
				}
				return fmt.Errorf("%w; restarted but %v", failure, herr)
			}
		}
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-p.stopCh:
			return nil
		default:
		}
		log.Printf("Restart of %s failed: %v", p.path, err)
	}
}
