//go:build !linux && !windows

package vpn

import (
	"io"
	"os"
	"os/exec"
	"syscall"
)

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func attachGuard(*os.Process) io.Closer { return nil }
