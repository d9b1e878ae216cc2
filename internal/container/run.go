package container

import (
	"fmt"
	"os"
	"time"

	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"
)

// TimeoutError reports that a container did not exit within its allotted
// timeout. The container has already been killed and reaped by the time
// this error is returned.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("container did not exit within %s", e.Timeout)
}

// UnsuccessfulError reports that a container exited, but not with status
// 0: either a nonzero exit code or death by signal.
type UnsuccessfulError struct {
	WaitStatus unix.WaitStatus
}

func (e *UnsuccessfulError) Error() string {
	ws := e.WaitStatus
	switch {
	case ws.Exited():
		return fmt.Sprintf("container exited with status %d", ws.ExitStatus())
	case ws.Signaled():
		return fmt.Sprintf("container was killed by signal %s", ws.Signal())
	default:
		return fmt.Sprintf("container ended in unexpected wait status %#x", uint32(ws))
	}
}

// Run spawns c and blocks until the container exits, is killed for
// exceeding timeout, or fails during setup. It always reaps the child
// before returning: the *KillGuard covering it is released or fired on
// every return path, so no path out of Run can leak a zombie or an armed
// guard.
func Run(c *Command, timeout time.Duration) error {
	proc, err := c.Spawn()
	if err != nil {
		return err
	}
	defer proc.pidfd.Close()

	deadline := time.Now().Add(timeout)
	exited, err := pollUntil(proc.pidfd, deadline)
	if err != nil {
		proc.guard.KillIfArmed()
		return withContext(err, "poll pidfd")
	}
	if !exited {
		proc.guard.KillIfArmed()
		return &TimeoutError{Timeout: timeout}
	}

	_, waitStatus, err := sysos.Waitpid(proc.pid, 0)
	proc.guard.Release()
	if err != nil {
		return withContext(err, "waitpid")
	}

	if waitStatus.ExitStatus() == 0 && !waitStatus.Signaled() {
		return nil
	}
	return &UnsuccessfulError{WaitStatus: waitStatus}
}

// pollUntil polls fd for readability (signaling the pidfd's process has
// exited) until deadline, retrying EINTR with a short bounded backoff that
// does not eat into the caller's remaining timeout budget: the deadline is
// recomputed before every retry rather than restarting a fixed window.
func pollUntil(fd *os.File, deadline time.Time) (exited bool, err error) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Millisecond
	retry.MaxInterval = 20 * time.Millisecond
	retry.MaxElapsedTime = 0 // bounded by the deadline check below instead

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		millis := remaining.Milliseconds()
		if millis > int64(^uint32(0)>>1) {
			millis = int64(^uint32(0) >> 1)
		}

		fds := []unix.PollFd{{Fd: int32(fd.Fd()), Events: unix.POLLIN}}
		n, err := sysos.Poll(fds, int32(millis))
		if err != nil {
			if err == unix.EINTR {
				time.Sleep(retry.NextBackOff())
				continue
			}
			return false, err
		}
		retry.Reset()
		if n == 0 {
			// Timed out this round; loop to re-check the deadline.
			continue
		}
		return true, nil
	}
}
