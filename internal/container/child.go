package container

import (
	"encoding/binary"

	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"golang.org/x/sys/unix"
)

// These are resolved once at package load, long before any clone3 call,
// so that childPreExecve never needs to build a ByteString itself.
var (
	procSelfSetgroups = sysos.MustByteString("/proc/self/setgroups")
	procSelfUIDMap    = sysos.MustByteString("/proc/self/uid_map")
	procSelfGIDMap    = sysos.MustByteString("/proc/self/gid_map")
)

// childPreExecve runs in the cloned child, after clone3 and before execve.
// It must not allocate, panic, block on a lock, or touch any goroutine-
// scheduling primitive: the Go runtime believes this OS thread still
// belongs to the parent process's many-threaded world, and nothing here
// may depend on that belief being true. Every helper it calls lives in
// internal/sysos for exactly this reason.
//
// On any failure it reports the error through the pipe and calls
// sysos.ExitNow; on success it replaces the process image via execve and
// never returns at all.
func childPreExecve(c *Command, pipeWrite int, chdirTarget sysos.ByteString) {
	if len(c.Setgroups) != 0 {
		if errno := writeProcSelfFile(procSelfSetgroups, c.Setgroups); errno != 0 {
			childFail(pipeWrite, errno, "write /proc/self/setgroups")
		}
	}
	if len(c.UIDMap) != 0 {
		if errno := writeProcSelfFile(procSelfUIDMap, c.UIDMap); errno != 0 {
			childFail(pipeWrite, errno, "write /proc/self/uid_map")
		}
	}
	if len(c.GIDMap) != 0 {
		if errno := writeProcSelfFile(procSelfGIDMap, c.GIDMap); errno != 0 {
			childFail(pipeWrite, errno, "write /proc/self/gid_map")
		}
	}

	if err := sysos.Chdir(chdirTarget); err != nil {
		childFail(pipeWrite, err.(unix.Errno), "chdir to scratch directory")
	}

	for i := range c.Mounts {
		m := &c.Mounts[i]
		if err := sysos.Mount(m.Source, m.Target, m.Filesystemtype, m.Mountflags, m.Data); err != nil {
			childFail(pipeWrite, err.(unix.Errno), "mount")
		}
	}

	if len(c.Chroot) != 0 {
		if err := sysos.Chroot(c.Chroot); err != nil {
			childFail(pipeWrite, err.(unix.Errno), "chroot")
		}
	}
	if len(c.ChrootChdir) != 0 {
		if err := sysos.Chdir(c.ChrootChdir); err != nil {
			childFail(pipeWrite, err.(unix.Errno), "chdir after chroot")
		}
	}

	if err := adjustStdio(c.Stdin, unix.Stdin); err != nil {
		childFail(pipeWrite, err.(unix.Errno), "redirect stdin")
	}
	if err := adjustStdio(c.Stdout, unix.Stdout); err != nil {
		childFail(pipeWrite, err.(unix.Errno), "redirect stdout")
	}
	if err := adjustStdio(c.Stderr, unix.Stderr); err != nil {
		childFail(pipeWrite, err.(unix.Errno), "redirect stderr")
	}

	err := sysos.Execve(c.ExecvePathname, c.ExecveArgv.Pointers(), c.ExecveEnvp.Pointers())
	// Execve only returns on failure.
	childFail(pipeWrite, err.(unix.Errno), "execve")
}

// adjustStdio applies one Stdio directive to a standard descriptor slot.
func adjustStdio(s Stdio, slot int) error {
	switch s.Kind {
	case StdioInherit:
		return nil
	case StdioClose:
		return sysos.CloseFD(slot)
	case StdioDup2:
		if s.OldFD == slot {
			return nil
		}
		// oldfd is left open: it may be reused by a later Stdio
		// directive (stdout and stderr commonly share one log fd).
		return sysos.Dup2Close(s.OldFD, slot)
	default:
		return nil
	}
}

// writeProcSelfFile opens path for writing and writes contents with a
// single write(2) call. A short write is treated as EAGAIN, matching the
// original's treatment of the /proc/self/{setgroups,uid_map,gid_map}
// files, which either accept a whole mapping atomically or reject it.
func writeProcSelfFile(path sysos.ByteString, contents []byte) unix.Errno {
	fd, err := sysos.OpenWriteTruncAt(path)
	if err != nil {
		return err.(unix.Errno)
	}
	n, err := sysos.WriteFD(fd, contents)
	if err != nil {
		sysos.CloseFD(fd)
		return err.(unix.Errno)
	}
	sysos.CloseFD(fd)
	if n != len(contents) {
		return unix.EAGAIN
	}
	return 0
}

// childFail reports a setup failure over the pipe and terminates the
// child. It writes the 4-byte native-endian errno and the context string
// as two separate write(2) calls; since the child is the pipe's only
// writer, the parent sees them in order with no interleaving to worry
// about.
func childFail(pipeWrite int, errno unix.Errno, context string) {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(errno))
	sysos.WriteFD(pipeWrite, buf[:])
	sysos.WriteFD(pipeWrite, sysos.StringBytes(context))
	sysos.ExitNow(1)
}
