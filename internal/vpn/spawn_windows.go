//go:build windows

package vpn

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// jobGuard owns a kill-on-close job object. The OS terminates every process
// in the job when the last handle closes, including when this program crashes.
type jobGuard struct {
	handle windows.Handle
}

func (j *jobGuard) Close() error {
	slog.Debug("Closing job object handle")
	return windows.CloseHandle(j.handle)
}

// attachGuard assigns p to a new kill-on-close job object. It returns nil when
// the job cannot be created; the child then runs without the safety net.
func attachGuard(p *os.Process) io.Closer {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		slog.Warn("CreateJobObject failed", "error", err)
		return nil
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		slog.Warn("SetInformationJobObject failed", "error", err)
		_ = windows.CloseHandle(job)
		return nil
	}

	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(p.Pid))
	if err != nil {
		slog.Warn("OpenProcess failed", "pid", p.Pid, "error", err)
		_ = windows.CloseHandle(job)
		return nil
	}
	defer func() { _ = windows.CloseHandle(proc) }()

	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		slog.Warn("AssignProcessToJobObject failed", "pid", p.Pid, "error", err)
		_ = windows.CloseHandle(job)
		return nil
	}
	slog.Info("Client assigned to kill-on-close job object", "pid", p.Pid)
	return &jobGuard{handle: job}
}
