// Package process supervises the external renderer processes that draw animated
// wallpapers: it resolves and launches the binary, confirms it survived startup,
// polls it for liveness, applies the crash policy and reaps it on shutdown.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// CrashPolicy decides what happens when a renderer exits on its own.
type CrashPolicy int

const (
	// PolicySurface reports the first unexpected exit to the owner.
	PolicySurface CrashPolicy = iota
	// PolicyRestart relaunches with exponential backoff up to MaxRestarts times.
	PolicyRestart
)

// ParseCrashPolicy maps a config value to a CrashPolicy.
func ParseCrashPolicy(s string) (CrashPolicy, error) {
	switch s {
	case config.CrashPolicySurface:
		return PolicySurface, nil
	case config.CrashPolicyRestart, "":
		return PolicyRestart, nil
	}
	return PolicySurface, apperror.Config("crash policy", "unknown policy %q", s)
}

// ErrExited is reported when a supervised process exits without being asked to.
var ErrExited = errors.New("renderer process exited unexpectedly")

// Options tunes a Supervisor.
type Options struct {
	CheckInterval  time.Duration
	SpawnTimeout   time.Duration
	SettleTime     time.Duration
	KillTimeout    time.Duration
	Policy         CrashPolicy
	MaxRestarts    int
	RestartBackoff time.Duration
	// StableAfter resets the restart budget once a process has stayed up this long.
	StableAfter time.Duration
}

// OptionsFromConfig converts the supervisor section of the configuration.
func OptionsFromConfig(c config.SupervisorConfig) (Options, error) {
	policy, err := ParseCrashPolicy(c.CrashPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		CheckInterval:  c.CheckInterval,
		SpawnTimeout:   c.SpawnTimeout,
		SettleTime:     c.SettleTime,
		KillTimeout:    c.KillTimeout,
		Policy:         policy,
		MaxRestarts:    c.MaxRestarts,
		RestartBackoff: c.RestartBackoff,
		StableAfter:    c.StableAfter,
	}, nil
}

func (o *Options) setDefaults() {
	if o.CheckInterval <= 0 {
		o.CheckInterval = time.Second
	}
	if o.SpawnTimeout <= 0 {
		o.SpawnTimeout = 5 * time.Second
	}
	if o.SettleTime < 0 {
		o.SettleTime = 0
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = 3 * time.Second
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = 500 * time.Millisecond
	}
	if o.StableAfter <= 0 {
		o.StableAfter = 30 * time.Second
	}
}

// Command describes a renderer invocation.
type Command struct {
	// Candidates are tried in order; the first one found is launched.
	Candidates []string
	Args       []string
	Env        []string
	// WindowID is the embedding target already encoded in Args. Zero when the
	// renderer owns its own surface.
	WindowID uint64
	// OnRestart, when set, runs after the crash policy relaunched the command
	// and before monitoring resumes. ctx is cancelled by Stop. An error gives up
	// on the process and is reported through onFailure.
	OnRestart func(ctx context.Context, h Handle) error
}

// Handle identifies a running renderer.
type Handle struct {
	PID      int
	WindowID uint64
	Binary   string
	Started  time.Time
}

// Supervisor launches and supervises renderer processes.
type Supervisor struct {
	opts Options

	// Launcher starts processes. Defaults to the os/exec launcher.
	Launcher Launcher
	// LookPath resolves binary names. Defaults to exec.LookPath.
	LookPath func(string) (string, error)

	live atomic.Int32
}

// NewSupervisor creates a Supervisor with the given options.
func NewSupervisor(opts Options) *Supervisor {
	opts.setDefaults()
	return &Supervisor{
		opts:     opts,
		Launcher: ExecLauncher{},
		LookPath: exec.LookPath,
	}
}

// Live returns the number of renderer processes that have not been reaped yet.
func (s *Supervisor) Live() int {
	return int(s.live.Load())
}

// Resolve returns the first candidate binary that can be found.
func (s *Supervisor) Resolve(candidates []string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if path, err := s.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", apperror.Missing("resolve renderer", candidates)
}

// Spawn launches cmd and waits until it has survived the settle window. The
// returned Process is monitored until Stop; onFailure is called at most once
// if the process dies and the crash policy gives up on it.
func (s *Supervisor) Spawn(ctx context.Context, cmd Command, onFailure func(error)) (*Process, error) {
	path, err := s.Resolve(cmd.Candidates)
	if err != nil {
		return nil, err
	}

	p := &Process{
		sup:         s,
		path:        path,
		cmd:         cmd,
		onFailure:   onFailure,
		stopCh:      make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
	if err := p.launch(ctx); err != nil {
		return nil, err
	}

	go p.monitor()
	return p, nil
}

// startProcess launches one incarnation and waits for it to settle.
func (s *Supervisor) startProcess(ctx context.Context, path string, cmd Command) (*incarnation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SpawnTimeout)
	defer cancel()

	proc, err := s.Launcher.Launch(path, cmd.Args, cmd.Env)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindProcessSpawn, "spawn "+path, err)
	}
	s.live.Add(1)

	inc := &incarnation{proc: proc, started: time.Now(), exited: make(chan struct{})}
	go func() {
		inc.err = proc.Wait()
		s.live.Add(-1)
		close(inc.exited)
	}()

	log.Debugf("Spawned %s (pid %d) %v", path, proc.Pid(), cmd.Args)

	settle := time.NewTimer(s.opts.SettleTime)
	defer settle.Stop()

	select {
	case <-settle.C:
		return inc, nil
	case <-inc.exited:
		return nil, apperror.New(apperror.KindProcessSpawn, "spawn "+path,
			"exited during startup: %v%s", inc.err, outputSuffix(proc))
	case <-ctx.Done():
		s.reap(inc)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperror.New(apperror.KindProcessSpawn, "spawn "+path,
				"not ready within %s", s.opts.SpawnTimeout)
		}
		return nil, fmt.Errorf("spawn %s: %w", path, ctx.Err())
	}
}

// reap terminates an incarnation gracefully, force-kills it after KillTimeout and
// waits for it to be reaped.
func (s *Supervisor) reap(inc *incarnation) {
	select {
	case <-inc.exited:
		return
	default:
	}

	if err := inc.proc.Terminate(); err != nil {
		log.Debugf("Terminate pid %d: %v", inc.proc.Pid(), err)
	}
	timer := time.NewTimer(s.opts.KillTimeout)
	defer timer.Stop()
	select {
	case <-inc.exited:
		return
	case <-timer.C:
	}

	log.Printf("Renderer pid %d ignored terminate for %s, killing", inc.proc.Pid(), s.opts.KillTimeout)
	if err := inc.proc.Kill(); err != nil {
		log.Printf("Kill pid %d: %v", inc.proc.Pid(), err)
	}
	select {
	case <-inc.exited:
	case <-time.After(s.opts.KillTimeout):
		log.Printf("Renderer pid %d still not reaped after kill", inc.proc.Pid())
	}
}

func outputSuffix(proc Proc) string {
	if o, ok := proc.(interface{ Output() string }); ok {
		if out := o.Output(); out != "" {
			return ": " + out
		}
	}
	return ""
}
