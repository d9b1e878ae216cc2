package container

import "github.com/chloekek/snowflake-old-2/internal/sysos"

// Mount describes one mount(2) call to perform inside the new mount
// namespace, before chroot.
type Mount struct {
	Source         sysos.ByteString
	Target         sysos.ByteString
	Filesystemtype sysos.ByteString
	Mountflags     uintptr
	Data           sysos.ByteString
}

// StdioKind selects how a child's standard stream is wired up.
type StdioKind int

const (
	// StdioInherit leaves the descriptor exactly as clone3(2) inherited it.
	StdioInherit StdioKind = iota
	// StdioClose closes the descriptor before execve.
	StdioClose
	// StdioDup2 duplicates OldFD onto the descriptor, closing whatever the
	// descriptor previously held. OldFD itself is left open.
	StdioDup2
)

// Stdio selects the treatment of one of the child's standard streams.
type Stdio struct {
	Kind  StdioKind
	OldFD int
}

// Command is the full, already-resolved description of a container to
// spawn: every field is either a primitive, a sysos.ByteString, or a
// sysos.ByteStringArray, so that building one performs all the allocation
// a spawn will ever need up front, in the parent, where allocation is
// safe.
type Command struct {
	// Setgroups, UIDMap and GIDMap are the verbatim contents to write to
	// /proc/self/{setgroups,uid_map,gid_map} in the child, in that order.
	// Leave Setgroups empty to skip writing that file.
	Setgroups []byte
	UIDMap    []byte
	GIDMap    []byte

	// Fchdir is a file descriptor, valid in the parent, to chdir into via
	// the /proc/self/fd/<n> magic-link dereference before any mounts are
	// performed. It must refer to a directory. The caller owns the
	// descriptor and is responsible for closing it once Spawn returns.
	Fchdir int

	// Mounts are performed in order after the chdir into Fchdir's
	// directory and before Chroot.
	Mounts []Mount

	// Chroot is the path, resolved inside the mount namespace after
	// Mounts have been performed, to chroot(2) into. Leave empty to skip
	// chrooting.
	Chroot sysos.ByteString
	// ChrootChdir is the path, resolved after chroot(2), to chdir(2)
	// into.
	ChrootChdir sysos.ByteString

	// ExecvePathname, ExecveArgv and ExecveEnvp describe the program the
	// child execve(2)s into once setup completes.
	ExecvePathname sysos.ByteString
	ExecveArgv     sysos.ByteStringArray
	ExecveEnvp     sysos.ByteStringArray

	Stdin  Stdio
	Stdout Stdio
	Stderr Stdio
}
