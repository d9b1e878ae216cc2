// Package testutil holds small test-only helpers shared across this
// module's packages.
package testutil

import (
	"os/exec"
	"sync"
	"syscall"
	"testing"
)

var (
	userNamespaceOnce      sync.Once
	userNamespaceSupported bool
)

// UserNamespace skips the calling test unless the host can create
// unprivileged user namespaces. Spawning one is the cheapest possible
// probe, so it is done once per test binary run and cached.
func UserNamespace(t *testing.T) {
	userNamespaceOnce.Do(func() {
		cmd := exec.Command("/bin/true")
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Cloneflags: syscall.CLONE_NEWUSER,
		}
		userNamespaceSupported = cmd.Run() == nil
	})
	if !userNamespaceSupported {
		t.Skip("user namespaces are not supported on this host")
	}
}
