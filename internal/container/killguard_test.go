package container

import (
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"
)

func TestKillGuardReleaseDoesNotKill(t *testing.T) {
	cmd := exec.Command("/bin/sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start /bin/sleep: %v", err)
	}
	pid := cmd.Process.Pid

	guard := NewKillGuard(pid)
	guard.Release()
	// KillIfArmed must be a no-op now; if it still killed and reaped the
	// process, Process.Kill below would fail because the process is gone.
	guard.KillIfArmed()

	if err := cmd.Process.Kill(); err != nil {
		t.Fatalf("Process.Kill after Release: %v", err)
	}
	cmd.Wait()
}

func TestKillGuardKillsWhenArmed(t *testing.T) {
	cmd := exec.Command("/bin/sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start /bin/sleep: %v", err)
	}
	pid := cmd.Process.Pid

	guard := NewKillGuard(pid)
	guard.KillIfArmed()

	// The guard has already reaped pid itself; signal 0 to a reaped pid
	// reports ESRCH, confirming it is really gone rather than just killed
	// and left as a zombie.
	if err := unix.Kill(pid, 0); err != unix.ESRCH {
		t.Fatalf("kill(pid, 0) = %v, want ESRCH", err)
	}
}
