package wallpaper

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
	"github.com/dixieflatline76/AetherDesk/pkg/process"
	"github.com/stretchr/testify/mock"
)

// MockNativeSetter is a testify mock for NativeSetter.
type MockNativeSetter struct {
	mock.Mock
}

func (m *MockNativeSetter) SetNative(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// fakeWindows is an in-memory WindowManager.
type fakeWindows struct {
	mu        sync.Mutex
	layered   bool
	degraded  bool
	createErr error
	created   int
	released  int
	adopted   []int
	adoptErr  error
}

func (f *fakeWindows) CreateSurface(context.Context) (*desktop.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	if f.layered {
		return &desktop.Embedding{Layer: true, Outputs: []string{"DP-1"}}, nil
	}
	return &desktop.Embedding{
		Window:   desktop.WindowID(0x400000 + f.created),
		Bounds:   desktop.Rect{Width: 1280, Height: 720},
		Degraded: f.degraded,
	}, nil
}

func (f *fakeWindows) Adopt(_ context.Context, pid int) (*desktop.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.adoptErr != nil {
		return nil, f.adoptErr
	}
	f.created++
	f.adopted = append(f.adopted, pid)
	return &desktop.Embedding{Window: desktop.WindowID(0x500000 + pid), Bounds: desktop.Rect{Width: 1280, Height: 720}}, nil
}

func (f *fakeWindows) Release(*desktop.Embedding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeWindows) Layered() bool { return f.layered }

func (f *fakeWindows) adoptedPIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.adopted...)
}

func (f *fakeWindows) failAdopt(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adoptErr = err
}

func (f *fakeWindows) counts() (created, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.released
}

// fakeProc exits when terminated.
type fakeProc struct {
	pid      int
	launcher *fakeLauncher

	mu        sync.Mutex
	exit      chan struct{}
	suspended bool
}

func (p *fakeProc) Pid() int { return p.pid }

func (p *fakeProc) Wait() error {
	<-p.exit
	return errors.New("signal: terminated")
}

func (p *fakeProc) die() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exit:
	default:
		p.launcher.live.Add(-1)
		close(p.exit)
	}
}

func (p *fakeProc) Terminate() error { p.die(); return nil }
func (p *fakeProc) Kill() error      { p.die(); return nil }

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

func (p *fakeProc) isSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

type launch struct {
	path string
	args []string
	proc *fakeProc
}

// fakeLauncher records launches and tracks how many processes are alive at once.
type fakeLauncher struct {
	mu       sync.Mutex
	nextPID  int
	launches []launch
	launched chan struct{}

	live    atomic.Int32
	maxLive atomic.Int32
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{nextPID: 1000, launched: make(chan struct{}, 64)}
}

func (l *fakeLauncher) Launch(path string, args, _ []string) (process.Proc, error) {
	l.mu.Lock()
	l.nextPID++
	p := &fakeProc{pid: l.nextPID, launcher: l, exit: make(chan struct{})}
	l.launches = append(l.launches, launch{path: path, args: append([]string(nil), args...), proc: p})
	l.mu.Unlock()

	n := l.live.Add(1)
	for {
		m := l.maxLive.Load()
		if n <= m || l.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	l.launched <- struct{}{}
	return p, nil
}

func (l *fakeLauncher) all() []launch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]launch(nil), l.launches...)
}

func (l *fakeLauncher) last() launch {
	all := l.all()
	return all[len(all)-1]
}

// lookPath finds only the named binaries, by name or by their resolved path.
func lookPath(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if path := filepath.Join("/usr/bin", f); f == name || path == name {
				return path, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func newTestSupervisor(l *fakeLauncher, settle time.Duration, found ...string) *process.Supervisor {
	return newPolicySupervisor(l, process.PolicySurface, settle, found...)
}

func newPolicySupervisor(l *fakeLauncher, policy process.CrashPolicy, settle time.Duration, found ...string) *process.Supervisor {
	sup := process.NewSupervisor(process.Options{
		CheckInterval:  10 * time.Millisecond,
		SpawnTimeout:   10 * time.Second,
		SettleTime:     settle,
		KillTimeout:    200 * time.Millisecond,
		Policy:         policy,
		MaxRestarts:    3,
		RestartBackoff: 5 * time.Millisecond,
	})
	sup.Launcher = l
	sup.LookPath = lookPath(found...)
	return sup
}

// stateRecorder collects published states.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	ch     chan State
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan State, 64)}
}

func (r *stateRecorder) record(_ Wallpaper, s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *stateRecorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
