package action

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/chloekek/snowflake-old-2/internal/cachekey"
	"github.com/chloekek/snowflake-old-2/internal/config"
	"github.com/chloekek/snowflake-old-2/internal/container"
	"github.com/chloekek/snowflake-old-2/internal/diag"
	"github.com/chloekek/snowflake-old-2/internal/sysos"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// PerformRunAction is the information needed to run one program inside one
// container, mirroring the original PerformRunAction struct.
type PerformRunAction struct {
	// Program is the absolute, container-rooted path of the executable.
	Program string
	// Arguments is argv, including argv[0] by convention.
	Arguments []string
	// Environment is envp, as "KEY=VALUE" strings.
	Environment []string
	// Timeout bounds the whole run; exceeding it kills the container.
	Timeout time.Duration
	// NixStorePath is bind-mounted read-only at /nix/store inside the
	// container. Unlike the original, which hardcoded this path as a
	// build-time constant, it is a field here so a single process can
	// run actions against more than one store.
	NixStorePath string
}

// Perform builds the container's filesystem root under ctx.ScratchDir,
// wires up the fixed mount plan and compatibility symlinks, and runs
// info.Program to completion or timeout.
func Perform(ctx *ActionContext, cfg config.Config, info PerformRunAction) error {
	lockPath := filepath.Join(ctx.ScratchDir.Name(), ".lock")
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("action: lock scratch directory: %w", err)
	}

	if err := buildSkeleton(ctx, cfg); err != nil {
		lock.Unlock()
		return err
	}
	// The lock only needs to cover skeleton construction: once every
	// directory and symlink exists, the kernel's own mount namespace
	// isolation prevents concurrent runs from interfering with each
	// other, so the lock is released before Spawn.
	lock.Unlock()

	diag.LogRunAction(info.Program, info.Arguments, ctx.ScratchDir.Name(), info.NixStorePath)
	diag.LogCapabilityPreflight()

	return runCommand(ctx, cfg, info)
}

func buildSkeleton(ctx *ActionContext, cfg config.Config) error {
	dirfd := int(ctx.ScratchDir.Fd())

	type dir struct {
		path string
		mode uint32
	}
	dirs := []dir{
		{"bin", 0o755},
		{"nix", 0o755},
		{"nix/store", 0o755},
		{"proc", 0o555},
		{"usr", 0o755},
		{"usr/bin", 0o755},
		// Working directory for the command.
		{"build", 0o755},
	}
	for _, d := range dirs {
		p, err := sysos.NewByteString(d.path)
		if err != nil {
			return err
		}
		if err := sysos.MkdiratRelative(dirfd, p, d.mode); err != nil {
			return fmt.Errorf("action: mkdirat %s: %w", d.path, err)
		}
	}

	// These executables are expected to exist by many programs: consider
	// scripts with #!/usr/bin/env or programs calling system(3). They
	// are always made available even when not declared as inputs, so
	// they must be included in the run action's cache key (see
	// cachekey.RunActionInput).
	if err := symlinkCompat(dirfd, cfg.BashPath+"/bin/bash", "bin/sh"); err != nil {
		return err
	}
	if err := symlinkCompat(dirfd, cfg.CoreutilsPath+"/bin/env", "usr/bin/env"); err != nil {
		return err
	}
	return nil
}

func symlinkCompat(dirfd int, target, linkpath string) error {
	targetBS, err := sysos.NewByteString(target)
	if err != nil {
		return err
	}
	linkpathBS, err := sysos.NewByteString(linkpath)
	if err != nil {
		return err
	}
	if err := sysos.SymlinkatRelative(targetBS, dirfd, linkpathBS); err != nil {
		return fmt.Errorf("action: symlinkat %s -> %s: %w", linkpath, target, err)
	}
	return nil
}

func runCommand(ctx *ActionContext, cfg config.Config, info PerformRunAction) error {
	argv, err := sysos.NewByteStringArray(info.Arguments...)
	if err != nil {
		return err
	}
	envp, err := sysos.NewByteStringArray(info.Environment...)
	if err != nil {
		return err
	}
	program, err := sysos.NewByteString(info.Program)
	if err != nil {
		return err
	}
	chroot, err := sysos.NewByteString(".")
	if err != nil {
		return err
	}
	chrootChdir, err := sysos.NewByteString("/build")
	if err != nil {
		return err
	}
	mounts, err := collectMounts(info.NixStorePath)
	if err != nil {
		return err
	}

	cmd := &container.Command{
		// Map root inside the container to the caller's own uid/gid
		// outside it.
		Setgroups: []byte("deny\n"),
		UIDMap:    []byte(fmt.Sprintf("0 %d 1\n", unix.Getuid())),
		GIDMap:    []byte(fmt.Sprintf("0 %d 1\n", unix.Getgid())),

		Fchdir: int(ctx.ScratchDir.Fd()),
		Mounts: mounts,

		Chroot:      chroot,
		ChrootChdir: chrootChdir,

		ExecvePathname: program,
		ExecveArgv:     argv,
		ExecveEnvp:     envp,

		Stdin:  container.Stdio{Kind: container.StdioClose},
		Stdout: container.Stdio{Kind: container.StdioDup2, OldFD: int(ctx.LogFile.Fd())},
		Stderr: container.Stdio{Kind: container.StdioDup2, OldFD: int(ctx.LogFile.Fd())},
	}

	return container.Run(cmd, info.Timeout)
}

// CacheKeyInput feeds info's cache key input to h and returns the digest a
// scheduler compares before deciding whether this run action's result can
// be reused.
func CacheKeyInput(h cachekey.Hasher, info PerformRunAction) [32]byte {
	return cachekey.RunActionInput(h, info.Program, info.Arguments, info.Environment, info.Timeout)
}
