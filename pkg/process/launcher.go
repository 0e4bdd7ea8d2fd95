package process

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Launcher starts an OS process.
type Launcher interface {
	Launch(path string, args, env []string) (Proc, error)
}

// Proc is a launched OS process.
type Proc interface {
	Pid() int
	// Wait blocks until the process exits and has been reaped.
	Wait() error
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forces the process (and its children) to exit.
	Kill() error
	Suspend() error
	Resume() error
}

// ExecLauncher launches processes with os/exec. Children are placed in their own
// process group (a job object on Windows) so the whole renderer tree can be
// signalled, and they are killed if the daemon itself dies.
type ExecLauncher struct{}

// Launch implements Launcher.
func (ExecLauncher) Launch(path string, args, env []string) (Proc, error) {
	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = 2 * time.Second

	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProc{cmd: cmd, stderr: stderr}
	if err := p.afterStart(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	return p, nil
}

type execProc struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	osState
}

func (p *execProc) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProc) Wait() error {
	err := p.cmd.Wait()
	p.release()
	return err
}

// Output returns the tail of the process's stderr.
func (p *execProc) Output() string {
	return p.stderr.String()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
