//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

type osState struct{}

func (p *execProc) afterStart() error { return nil }

func (p *execProc) release() {}

// signalGroup delivers sig to the renderer's process group. ESRCH means the
// group is already gone, which is what the caller wanted.
func (p *execProc) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (p *execProc) Terminate() error {
	if err := p.signalGroup(unix.SIGTERM); err != nil {
		return err
	}
	// A stopped process only sees SIGTERM once continued.
	return p.signalGroup(unix.SIGCONT)
}

func (p *execProc) Kill() error {
	return p.signalGroup(unix.SIGKILL)
}

func (p *execProc) Suspend() error {
	return p.signalGroup(unix.SIGSTOP)
}

func (p *execProc) Resume() error {
	return p.signalGroup(unix.SIGCONT)
}
