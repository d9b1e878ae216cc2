package action

import (
	"github.com/chloekek/snowflake-old-2/internal/container"
	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"golang.org/x/sys/unix"
)

// collectMounts builds the fixed mount plan every run action uses: a
// private recursive remount of /, a fresh proc mount, and a read-only
// recursive bind mount of the Nix store.
func collectMounts(nixStorePath string) ([]container.Mount, error) {
	var mounts []container.Mount

	none, err := sysos.NewByteString("none")
	if err != nil {
		return nil, err
	}
	root, err := sysos.NewByteString("/")
	if err != nil {
		return nil, err
	}
	// systemd mounts / as MS_SHARED; MS_PRIVATE is more isolated and
	// keeps the container's own mounts from propagating back out.
	mounts = append(mounts, container.Mount{
		Source:     none,
		Target:     root,
		Mountflags: unix.MS_PRIVATE | unix.MS_REC,
	})

	procSrc, err := sysos.NewByteString("proc")
	if err != nil {
		return nil, err
	}
	procDst, err := sysos.NewByteString("proc")
	if err != nil {
		return nil, err
	}
	procFstype, err := sysos.NewByteString("proc")
	if err != nil {
		return nil, err
	}
	mounts = append(mounts, container.Mount{
		Source:         procSrc,
		Target:         procDst,
		Filesystemtype: procFstype,
		Mountflags:     unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_NOSUID,
	})

	nixStoreMounts, err := mountBindRdonly(nixStorePath, "nix/store")
	if err != nil {
		return nil, err
	}
	mounts = append(mounts, nixStoreMounts...)

	return mounts, nil
}

// mountBindRdonly produces the two mount(2) calls a read-only recursive
// bind mount actually requires: the kernel rejects MS_BIND|MS_RDONLY in a
// single call, so the bind is created first and then remounted read-only.
// See https://unix.stackexchange.com/a/492462.
func mountBindRdonly(source, target string) ([]container.Mount, error) {
	sourceBS, err := sysos.NewByteString(source)
	if err != nil {
		return nil, err
	}
	targetBS, err := sysos.NewByteString(target)
	if err != nil {
		return nil, err
	}
	none, err := sysos.NewByteString("none")
	if err != nil {
		return nil, err
	}

	const flags1 = unix.MS_BIND | unix.MS_REC
	const flags2 = flags1 | unix.MS_RDONLY | unix.MS_REMOUNT

	return []container.Mount{
		{Source: sourceBS, Target: targetBS, Mountflags: flags1},
		{Source: none, Target: targetBS, Mountflags: flags2},
	}, nil
}
