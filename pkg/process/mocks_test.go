package process

import (
	"errors"
	"sync"
	"sync/atomic"
)

var errKilled = errors.New("signal: killed")

// fakeProc is a controllable Proc.
type fakeProc struct {
	pid        int
	ignoreTerm bool

	mu         sync.Mutex
	exit       chan struct{}
	exitErr    error
	terminated bool
	killed     bool
	suspended  bool
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, exit: make(chan struct{})}
}

func (p *fakeProc) Pid() int { return p.pid }

func (p *fakeProc) Wait() error {
	<-p.exit
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *fakeProc) die(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exit:
	default:
		p.exitErr = err
		close(p.exit)
	}
}

func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	ignore := p.ignoreTerm
	p.mu.Unlock()
	if !ignore {
		p.die(errors.New("signal: terminated"))
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.die(errKilled)
	return nil
}

func (p *fakeProc) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = true
	return nil
}

func (p *fakeProc) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = false
	return nil
}

func (p *fakeProc) state() (terminated, killed, suspended bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated, p.killed, p.suspended
}

// fakeLauncher hands out fakeProcs and records launches.
type fakeLauncher struct {
	mu       sync.Mutex
	procs    []*fakeProc
	nextPid  atomic.Int32
	failWith error
	// dieOnStart makes every launched process exit immediately.
	dieOnStart bool
	ignoreTerm bool
	lastArgs   []string
}

func (l *fakeLauncher) Launch(path string, args, env []string) (Proc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	p := newFakeProc(int(l.nextPid.Add(1)) + 1000)
	p.ignoreTerm = l.ignoreTerm
	if l.dieOnStart {
		p.die(errors.New("exit status 1"))
	}
	l.procs = append(l.procs, p)
	l.lastArgs = args
	return p, nil
}

func (l *fakeLauncher) launched() []*fakeProc {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*fakeProc, len(l.procs))
	copy(out, l.procs)
	return out
}

func (l *fakeLauncher) setDieOnStart(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dieOnStart = v
}

func foundAll(name string) (string, error) { return "/usr/bin/" + name, nil }
