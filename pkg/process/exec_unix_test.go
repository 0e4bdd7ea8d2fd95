//go:build !windows

package process

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func realSupervisor(t *testing.T, policy CrashPolicy) *Supervisor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewSupervisor(Options{
		CheckInterval: 20 * time.Millisecond,
		SpawnTimeout:  2 * time.Second,
		SettleTime:    50 * time.Millisecond,
		KillTimeout:   200 * time.Millisecond,
		Policy:        policy,
	})
}

func alive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func TestExec_SpawnStopReaps(t *testing.T) {
	s := realSupervisor(t, PolicySurface)

	p, err := s.Spawn(context.Background(), Command{Candidates: []string{"sh"}, Args: []string{"-c", "sleep 30"}}, nil)
	require.NoError(t, err)
	pid := p.Handle().PID
	require.NotZero(t, pid)
	assert.True(t, alive(pid))

	p.Stop()
	assert.Equal(t, 0, s.Live())
	assert.False(t, alive(pid), "process must be reaped, not left as a zombie")
}

func TestExec_StopKillsTermIgnoringProcess(t *testing.T) {
	s := realSupervisor(t, PolicySurface)

	p, err := s.Spawn(context.Background(),
		Command{Candidates: []string{"sh"}, Args: []string{"-c", "trap '' TERM; while :; do sleep 1; done"}}, nil)
	require.NoError(t, err)
	pid := p.Handle().PID

	p.Stop()
	assert.False(t, alive(pid))
	assert.Equal(t, 0, s.Live())
}

func TestExec_ImmediateExitIsSpawnError(t *testing.T) {
	s := realSupervisor(t, PolicySurface)

	_, err := s.Spawn(context.Background(),
		Command{Candidates: []string{"sh"}, Args: []string{"-c", "echo broken renderer >&2; exit 3"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProcessSpawn)
	assert.Contains(t, err.Error(), "broken renderer")
}

func TestExec_CrashIsReported(t *testing.T) {
	s := realSupervisor(t, PolicySurface)

	failures := make(chan error, 1)
	p, err := s.Spawn(context.Background(),
		Command{Candidates: []string{"sh"}, Args: []string{"-c", "sleep 0.2; exit 4"}},
		func(err error) { failures <- err })
	require.NoError(t, err)
	defer p.Stop()

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, ErrExited)
	case <-time.After(3 * time.Second):
		t.Fatal("crash not detected by liveness polling")
	}
}

func TestExec_SuspendResume(t *testing.T) {
	s := realSupervisor(t, PolicySurface)

	p, err := s.Spawn(context.Background(), Command{Candidates: []string{"sh"}, Args: []string{"-c", "sleep 30"}}, nil)
	require.NoError(t, err)

	require.NoError(t, p.Suspend())
	require.NoError(t, p.Resume())
	require.NoError(t, p.Suspend())

	// Stop must still work on a stopped process group.
	pid := p.Handle().PID
	p.Stop()
	assert.False(t, alive(pid))
}
