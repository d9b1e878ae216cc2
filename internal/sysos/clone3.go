package sysos

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// CLONEPIDFD requests that the kernel return a close-on-exec pidfd for the
// new child in CloneArgs.PidFD. Named in shout case to avoid clashing with
// unix.CLONE_PIDFD, which is not defined on every golang.org/x/sys/unix
// release this module might be built against.
const CLONEPIDFD = 0x00001000

// CloneArgs mirrors struct clone_args from linux/sched.h, sized to
// CLONE_ARGS_SIZE_VER0. Only the fields this module needs are named; the
// rest (set_tid, set_tid_size, cgroup) are never set and stay zero.
type CloneArgs struct {
	Flags      uint64
	PidFD      uint64
	ChildTID   uint64
	ParentTID  uint64
	ExitSignal uint64
	Stack      uint64
	StackSize  uint64
	TLS        uint64
}

// Clone3 issues the clone3(2) system call. On success, in the parent it
// returns the child's pid; in the child it returns 0. args.PidFD, if
// CLONE_PIDFD was set in args.Flags, is filled in by the kernel on the
// parent side with a close-on-exec pidfd for the new child.
//
// This function must not be called from a goroutine that has not pinned
// itself to its OS thread with runtime.LockOSThread: the thread that calls
// clone3 becomes the new process's (or new thread's) only thread, and the
// Go scheduler must never reschedule this goroutine onto a different OS
// thread while that is true.
func Clone3(args *CloneArgs) (pid int, err error) {
	r1, _, errno := unix.RawSyscall(
		unix.SYS_CLONE3,
		uintptr(unsafe.Pointer(args)),
		unsafe.Sizeof(*args),
		0,
	)
	if errno != 0 {
		return -1, errno
	}
	return int(r1), nil
}
