//go:build linux

package vpn

import (
	"io"
	"os"
	"os/exec"
	"syscall"
)

// configureCommand starts the client in its own process group and asks the
// kernel to signal it if this process dies first.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

func attachGuard(*os.Process) io.Closer { return nil }
