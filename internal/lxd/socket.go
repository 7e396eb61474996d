package lxd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkSocket verifies the daemon socket exists and this process may write to it.
// The daemon only accepts root and members of the lxd group on the socket.
func checkSocket(path string) error {
	if path == "" {
		return fmt.Errorf("lxd unix socket path is empty")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("lxd socket %s not accessible (is this user in the lxd group?): %w", path, err)
	}
	return nil
}
