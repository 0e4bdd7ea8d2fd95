//go:build windows

package process

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	createNoWindow       = 0x08000000
	processSuspendResume = 0x0800
)

var (
	ntdll                = windows.NewLazySystemDLL("ntdll.dll")
	procNtSuspendProcess = ntdll.NewProc("NtSuspendProcess")
	procNtResumeProcess  = ntdll.NewProc("NtResumeProcess")

	jobOnce sync.Once
	job     windows.Handle
	jobErr  error
)

// killOnCloseJob returns a job object that kills every assigned process when the
// last handle to it closes, which happens when the daemon exits for any reason.
func killOnCloseJob() (windows.Handle, error) {
	jobOnce.Do(func() {
		job, jobErr = windows.CreateJobObject(nil, nil)
		if jobErr != nil {
			return
		}
		info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
		info.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
		_, jobErr = windows.SetInformationJobObject(
			job,
			windows.JobObjectExtendedLimitInformation,
			uintptr(unsafe.Pointer(&info)),
			uint32(unsafe.Sizeof(info)),
		)
	})
	return job, jobErr
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

type osState struct {
	handle windows.Handle
}

func (p *execProc) afterStart() error {
	h, err := windows.OpenProcess(
		windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE|processSuspendResume|windows.SYNCHRONIZE,
		false, uint32(p.cmd.Process.Pid))
	if err != nil {
		return fmt.Errorf("open process: %w", err)
	}
	p.handle = h

	j, err := killOnCloseJob()
	if err != nil {
		return fmt.Errorf("create job object: %w", err)
	}
	if err := windows.AssignProcessToJobObject(j, h); err != nil {
		return fmt.Errorf("assign job object: %w", err)
	}
	return nil
}

func (p *execProc) release() {
	if p.handle != 0 {
		windows.CloseHandle(p.handle)
		p.handle = 0
	}
}

func taskkill(args ...string) error {
	cmd := exec.Command("taskkill", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}
	return cmd.Run()
}

// Terminate posts WM_CLOSE to the renderer's windows.
func (p *execProc) Terminate() error {
	return taskkill("/PID", strconv.Itoa(p.cmd.Process.Pid), "/T")
}

func (p *execProc) Kill() error {
	_ = taskkill("/PID", strconv.Itoa(p.cmd.Process.Pid), "/T", "/F")
	return p.cmd.Process.Kill()
}

func (p *execProc) Suspend() error {
	return ntCall(procNtSuspendProcess, p.handle)
}

func (p *execProc) Resume() error {
	return ntCall(procNtResumeProcess, p.handle)
}

func ntCall(proc *windows.LazyProc, h windows.Handle) error {
	if h == 0 {
		return nil
	}
	status, _, _ := proc.Call(uintptr(h))
	if status != 0 {
		return fmt.Errorf("%s: NTSTATUS 0x%x", proc.Name, status)
	}
	return nil
}
