package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chloekek/snowflake-old-2/internal/action"
	"github.com/chloekek/snowflake-old-2/internal/config"
	"github.com/chloekek/snowflake-old-2/internal/diag"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
)

// runCommand implements `snowflake run`: build a scratch root, mount the
// Nix store into it, and execve the given program inside a fresh set of
// namespaces.
type runCommand struct {
	scratchDir   string
	nixStorePath string
	logFilePath  string
	timeout      time.Duration
	configFile   string
}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "run a program inside a fresh container" }
func (*runCommand) Usage() string {
	return "run [flags] -- <program> [args...]\n"
}

func (c *runCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.scratchDir, "scratch-dir", "", "scratch directory the container's root is built under (required)")
	f.StringVar(&c.nixStorePath, "nix-store", "/nix/store", "path bind-mounted read-only at /nix/store inside the container")
	f.StringVar(&c.logFilePath, "log-file", "", "file stdout/stderr are redirected to (default: this process's stderr)")
	f.DurationVar(&c.timeout, "timeout", 2*time.Second, "maximum time the program may run before being killed")
	f.StringVar(&c.configFile, "config", "", "optional TOML overlay for bash_path/coreutils_path")
}

func (c *runCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if c.scratchDir == "" || len(args) == 0 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	cfg, err := config.Resolve(c.configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	scratchDirFD, err := unix.Open(c.scratchDir, unix.O_DIRECTORY|unix.O_PATH, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open scratch dir: %v\n", err)
		return subcommands.ExitFailure
	}
	scratchDir := os.NewFile(uintptr(scratchDirFD), c.scratchDir)
	defer scratchDir.Close()

	logFile := os.Stderr
	if c.logFilePath != "" {
		f, err := os.OpenFile(c.logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		logFile = f
	}

	ctx := &action.ActionContext{ScratchDir: scratchDir, LogFile: logFile}
	info := action.PerformRunAction{
		Program:      args[0],
		Arguments:    args,
		Environment:  os.Environ(),
		Timeout:      c.timeout,
		NixStorePath: c.nixStorePath,
	}

	if err := action.Perform(ctx, cfg, info); err != nil {
		diag.Log.WithError(err).Error("run action failed")
		notifyStatus(fmt.Sprintf("STATUS=run action failed: %v", err))
		return subcommands.ExitFailure
	}
	notifyStatus("STATUS=run action completed")
	return subcommands.ExitSuccess
}

// notifyStatus tells systemd, if this process was started as a unit with
// NotifyAccess set, what just happened. Outside that context
// daemon.SdNotify is a silent no-op, which is why every other path in this
// command can call it unconditionally.
func notifyStatus(state string) {
	_, _ = daemon.SdNotify(false, state)
}
