package container

import (
	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"golang.org/x/sys/unix"
)

// KillGuard ensures a spawned process is killed and reaped unless Release
// is called first. It is the Go equivalent of the original's Drop-based
// guard: Go has no destructor, so callers must defer guard.KillIfArmed()
// explicitly at every point the guarded pid could otherwise leak.
//
// The zero value is not armed; construct one with NewKillGuard.
type KillGuard struct {
	pid   int
	armed bool
}

// NewKillGuard arms a guard over pid.
func NewKillGuard(pid int) *KillGuard {
	return &KillGuard{pid: pid, armed: true}
}

// Release disarms the guard without killing the process. Call this once
// the caller has taken over responsibility for the process's lifetime
// (successful handoff), or once it has already been waited on.
func (g *KillGuard) Release() {
	g.armed = false
}

// KillIfArmed sends SIGKILL to the guarded pid and reaps it, if the guard
// is still armed. Failures from kill(2) or waitpid(2) are ignored, exactly
// as in the original: by the time this runs, the process may already be
// gone, and there is no meaningful recovery action left to take.
func (g *KillGuard) KillIfArmed() {
	if !g.armed {
		return
	}
	g.armed = false
	_ = sysos.Kill(g.pid, unix.SIGKILL)
	_, _, _ = sysos.Waitpid(g.pid, 0)
}
