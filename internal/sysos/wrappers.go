package sysos

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// The syscall wrappers below take already-built ByteStrings or raw file
// descriptors and perform exactly one raw system call each, except Poll,
// which goes through golang.org/x/sys/unix.Poll. None of them allocate.

// Chdir changes the working directory.
func Chdir(path ByteString) error {
	return raw3(unix.SYS_CHDIR, uintptr(unsafe.Pointer(path.Ptr())), 0, 0)
}

// Chroot changes the root directory.
func Chroot(path ByteString) error {
	return raw3(unix.SYS_CHROOT, uintptr(unsafe.Pointer(path.Ptr())), 0, 0)
}

// OpenWriteTruncAt opens path (relative to AT_FDCWD) for writing, creating
// nothing and truncating any existing content, with O_CLOEXEC forced.
func OpenWriteTruncAt(path ByteString) (fd int, err error) {
	r1, _, errno := unix.RawSyscall6(
		unix.SYS_OPENAT,
		uintptr(unix.AT_FDCWD),
		uintptr(unsafe.Pointer(path.Ptr())),
		uintptr(unix.O_WRONLY|unix.O_TRUNC|unix.O_CLOEXEC),
		0, 0, 0,
	)
	if errno != 0 {
		return -1, errno
	}
	return int(r1), nil
}

// Pipe2Cloexec creates a pipe with both ends close-on-exec.
func Pipe2Cloexec() (r, w int, err error) {
	var fds [2]int32
	_, _, errno := unix.RawSyscall(
		unix.SYS_PIPE2,
		uintptr(unsafe.Pointer(&fds[0])),
		uintptr(unix.O_CLOEXEC),
		0,
	)
	if errno != 0 {
		return -1, -1, errno
	}
	return int(fds[0]), int(fds[1]), nil
}

// MkdiratRelative creates a directory relative to dirfd.
func MkdiratRelative(dirfd int, path ByteString, mode uint32) error {
	return raw3(unix.SYS_MKDIRAT, uintptr(dirfd), uintptr(unsafe.Pointer(path.Ptr())), uintptr(mode))
}

// Mount performs mount(2). An empty ByteString for filesystemtype or data is
// passed through as a null pointer, matching mount(2)'s own treatment of
// NULL for those arguments.
func Mount(source, target, filesystemtype ByteString, mountflags uintptr, data ByteString) error {
	_, _, errno := unix.RawSyscall6(
		unix.SYS_MOUNT,
		uintptr(unsafe.Pointer(source.Ptr())),
		uintptr(unsafe.Pointer(target.Ptr())),
		uintptr(unsafe.Pointer(filesystemtype.Ptr())),
		mountflags,
		uintptr(unsafe.Pointer(data.Ptr())),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// SymlinkatRelative creates a symlink relative to newdirfd.
func SymlinkatRelative(target ByteString, newdirfd int, linkpath ByteString) error {
	return raw3(
		unix.SYS_SYMLINKAT,
		uintptr(unsafe.Pointer(target.Ptr())),
		uintptr(newdirfd),
		uintptr(unsafe.Pointer(linkpath.Ptr())),
	)
}

// Readlink reads the target of a symlink into buf, returning the number of
// bytes written. buf must be pre-allocated by the caller. It is
// implemented via readlinkat(2) with AT_FDCWD rather than the legacy
// readlink(2), since the latter has no syscall number on some
// architectures this module targets (notably arm64).
func Readlink(path ByteString, buf []byte) (int, error) {
	r1, _, errno := unix.RawSyscall6(
		unix.SYS_READLINKAT,
		uintptr(unix.AT_FDCWD),
		uintptr(unsafe.Pointer(path.Ptr())),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, 0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// Kill sends a signal to pid.
func Kill(pid int, sig unix.Signal) error {
	return raw3(unix.SYS_KILL, uintptr(pid), uintptr(sig), 0)
}

// Waitpid waits for pid to change state, returning its wait status.
func Waitpid(pid int, options int) (int, unix.WaitStatus, error) {
	var wstatus unix.WaitStatus
	r1, _, errno := unix.RawSyscall6(
		unix.SYS_WAIT4,
		uintptr(pid),
		uintptr(unsafe.Pointer(&wstatus)),
		uintptr(options),
		0, 0, 0,
	)
	if errno != 0 {
		return 0, 0, errno
	}
	return int(r1), wstatus, nil
}

// Poll polls fds, blocking for at most timeoutMillis milliseconds
// (capped at math.MaxInt32 by the caller). It is a thin wrapper over
// golang.org/x/sys/unix.Poll, which already resolves to ppoll(2) on
// architectures without a plain poll(2) syscall.
func Poll(fds []unix.PollFd, timeoutMillis int32) (int, error) {
	n, err := unix.Poll(fds, int(timeoutMillis))
	if err != nil {
		return n, err
	}
	return n, nil
}

// Execve replaces the calling process image. It only returns on failure.
func Execve(pathname ByteString, argv, envp []*byte) error {
	_, _, errno := unix.RawSyscall(
		unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(pathname.Ptr())),
		uintptr(unsafe.Pointer(&argv[0])),
		uintptr(unsafe.Pointer(&envp[0])),
	)
	return errno
}

// Dup2Close duplicates oldfd onto newfd, atomically closing newfd's prior
// occupant, and leaves oldfd open. Implemented via dup3(2) with no flags,
// which has identical behavior to dup2(2) except when oldfd == newfd.
func Dup2Close(oldfd, newfd int) error {
	return raw3(unix.SYS_DUP3, uintptr(oldfd), uintptr(newfd), 0)
}

// CloseFD closes a raw file descriptor and returns close(2)'s error, if
// any (for example EBADF when fd was already closed or invalid).
func CloseFD(fd int) error {
	return raw3(unix.SYS_CLOSE, uintptr(fd), 0, 0)
}

// WriteFD writes buf to fd with exactly one write(2) call, returning the
// number of bytes actually written (which may be fewer than len(buf)).
func WriteFD(fd int, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	r1, _, errno := unix.RawSyscall(
		unix.SYS_WRITE,
		uintptr(fd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// ExitNow terminates the calling process immediately via exit_group(2),
// the syscall _exit(2) resolves to on every architecture this module
// targets.
func ExitNow(code int) {
	unix.RawSyscall(unix.SYS_EXIT_GROUP, uintptr(code), 0, 0)
	panic("unreachable: exit_group(2) does not return")
}

// StringBytes returns a zero-copy view of s as a byte slice, for passing
// string literals (such as static error-context labels) to WriteFD without
// allocating a copy. The returned slice must not be mutated.
func StringBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func raw3(trap, a1, a2, a3 uintptr) error {
	_, _, errno := unix.RawSyscall(trap, a1, a2, a3)
	if errno != 0 {
		return errno
	}
	return nil
}
