package container

import (
	"encoding/binary"
	"errors"
	"os"
	"runtime"
	"strconv"
	"unsafe"

	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"golang.org/x/sys/unix"
)

// namespaceFlags is the fixed set of namespaces every container gets. A
// future Command field could make this configurable; nothing in spec.md
// asks for that yet, so it stays a constant.
const namespaceFlags = unix.CLONE_NEWCGROUP |
	unix.CLONE_NEWIPC |
	unix.CLONE_NEWNET |
	unix.CLONE_NEWNS |
	unix.CLONE_NEWPID |
	unix.CLONE_NEWUSER |
	unix.CLONE_NEWUTS

// Process is a live or exited container process: a pid and, if CLONE_PIDFD
// was honored, a pidfd usable with poll(2) to wait for exit without racing
// pid reuse.
type Process struct {
	pid   int
	pidfd *os.File
	guard *KillGuard
}

// Pid returns the container's process ID, valid for the process's whole
// lifetime (including after it exits, until Wait or the guard reaps it).
func (p *Process) Pid() int {
	return p.pid
}

// Spawn creates the container process described by c and returns as soon
// as the child has either reported a setup failure or successfully
// execve'd. It never blocks waiting for the child's own work to finish:
// that is Run's job.
//
// The returned *Process carries an armed KillGuard and has no finalizer:
// a *Process dropped without its guard being fired or released leaves the
// child running and unreaped. Run fires or releases the guard on every
// path.
func (c *Command) Spawn() (*Process, error) {
	chdirTarget, err := dereferenceFchdir(c.Fchdir)
	if err != nil {
		return nil, withContext(err, "resolve fchdir target")
	}

	// Pointers allocates on its first call; build both vectors here so the
	// child only reads the cached slices.
	c.ExecveArgv.Pointers()
	c.ExecveEnvp.Pointers()

	pipeRead, pipeWrite, err := sysos.Pipe2Cloexec()
	if err != nil {
		return nil, withContext(err, "pipe2")
	}

	// The calling goroutine must not migrate to a different OS thread
	// between clone3 and either execve or _exit in the child: the child
	// is, from the Go runtime's point of view, a single-threaded process
	// that happens to still contain Go's machine code. UnlockOSThread
	// only runs on the parent's return path.
	runtime.LockOSThread()

	var args sysos.CloneArgs
	args.Flags = uint64(namespaceFlags) | uint64(sysos.CLONEPIDFD)
	args.ExitSignal = uint64(unix.SIGCHLD)
	var pidfdStorage int32
	args.PidFD = uint64(uintptr(unsafe.Pointer(&pidfdStorage)))

	pid, err := sysos.Clone3(&args)
	if err != nil {
		runtime.UnlockOSThread()
		sysos.CloseFD(pipeRead)
		sysos.CloseFD(pipeWrite)
		return nil, withContext(err, "clone3")
	}

	if pid == 0 {
		// Child. childPreExecve never returns: it either execve's or
		// calls sysos.ExitNow.
		sysos.CloseFD(pipeRead)
		childPreExecve(c, pipeWrite, chdirTarget)
		panic("unreachable")
	}

	// Parent.
	runtime.UnlockOSThread()
	sysos.CloseFD(pipeWrite)

	guard := NewKillGuard(pid)
	pidfd := os.NewFile(uintptr(pidfdStorage), "pidfd:"+strconv.Itoa(pid))

	setupErr := readPipePacket(pipeRead)
	sysos.CloseFD(pipeRead)
	if setupErr != nil {
		guard.KillIfArmed()
		pidfd.Close()
		return nil, setupErr
	}

	return &Process{pid: pid, pidfd: pidfd, guard: guard}, nil
}

// dereferenceFchdir resolves the /proc/self/fd/<n> magic link for fd into
// an absolute path. The child chdirs by path, rather than refchdir-by-fd,
// because the path survives the private recursive remount of / performed
// before any of the container's own mounts; an open directory fd does not
// need that, but resolving once in the parent keeps the child's pre-exec
// sequence free of any fd-table bookkeeping beyond the pipe and stdio.
func dereferenceFchdir(fd int) (sysos.ByteString, error) {
	linkPath, err := sysos.NewByteString("/proc/self/fd/" + strconv.Itoa(fd))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4096)
	n, err := sysos.Readlink(linkPath, buf)
	if err != nil {
		return nil, err
	}
	return sysos.NewByteString(string(buf[:n]))
}

// readPipePacket implements the parent side of the close-on-exec
// error-reporting protocol whose child side is childFail: it reads until EOF (the write end closes either
// because the child exited or because it reached execve, which carries
// O_CLOEXEC across) and classifies what it received.
func readPipePacket(fd int) error {
	var packet []byte
	buf := make([]byte, 256)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return NewError(err, "read setup pipe")
		}
		if n == 0 {
			break
		}
		packet = append(packet, buf[:n]...)
	}

	switch {
	case len(packet) == 0:
		return nil
	case len(packet) >= 5:
		errno := unix.Errno(binary.NativeEndian.Uint32(packet[:4]))
		return &Error{inner: errno, context: string(packet[4:])}
	default:
		return &Error{inner: errUnknownChildFailure, context: "child_pre_execve"}
	}
}

// errUnknownChildFailure is reported when the pipe carries 1-4 bytes: too
// few for a full errno-plus-context packet to have been written, but not
// zero, so the child did fail partway through its own failure report.
var errUnknownChildFailure = errors.New("Unknown error")
