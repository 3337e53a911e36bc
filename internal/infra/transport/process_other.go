//go:build !linux

package transport

import "os/exec"

func setupProcessHandling(_ *exec.Cmd) processCleanup {
	return nil
}
