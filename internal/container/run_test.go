package container

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chloekek/snowflake-old-2/internal/sysos"
	"github.com/chloekek/snowflake-old-2/internal/testutil"

	"golang.org/x/sys/unix"
)

func mustByteString(t *testing.T, s string) sysos.ByteString {
	t.Helper()
	b, err := sysos.NewByteString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// openDirectory opens dir as an O_PATH|O_DIRECTORY descriptor, the shape
// Command.Fchdir expects.
func openDirectory(t *testing.T, dir string) int {
	t.Helper()
	fd, err := unix.Open(dir, unix.O_DIRECTORY|unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	return fd
}

func closeFD(t *testing.T, fd int) {
	t.Helper()
	unix.Close(fd)
}

func TestRunSuccess(t *testing.T) {
	testutil.UserNamespace(t)

	fd := openDirectory(t, t.TempDir())
	defer closeFD(t, fd)

	argv, _ := sysos.NewByteStringArray("true")
	envp, _ := sysos.NewByteStringArray()
	cmd := &Command{
		Setgroups:      []byte("deny\n"),
		Fchdir:         fd,
		ExecvePathname: mustByteString(t, "/bin/true"),
		ExecveArgv:     argv,
		ExecveEnvp:     envp,
		Stdin:          Stdio{Kind: StdioInherit},
		Stdout:         Stdio{Kind: StdioInherit},
		Stderr:         Stdio{Kind: StdioInherit},
	}

	if err := Run(cmd, 5*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	testutil.UserNamespace(t)

	fd := openDirectory(t, t.TempDir())
	defer closeFD(t, fd)

	argv, _ := sysos.NewByteStringArray("sleep", "5")
	envp, _ := sysos.NewByteStringArray()
	cmd := &Command{
		Setgroups:      []byte("deny\n"),
		Fchdir:         fd,
		ExecvePathname: mustByteString(t, "/bin/sleep"),
		ExecveArgv:     argv,
		ExecveEnvp:     envp,
		Stdin:          Stdio{Kind: StdioInherit},
		Stdout:         Stdio{Kind: StdioInherit},
		Stderr:         Stdio{Kind: StdioInherit},
	}

	err := Run(cmd, 50*time.Millisecond)
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("err = %v (%T), want *TimeoutError", err, err)
	}
}

func TestRunUnsuccessful(t *testing.T) {
	testutil.UserNamespace(t)

	fd := openDirectory(t, t.TempDir())
	defer closeFD(t, fd)

	argv, _ := sysos.NewByteStringArray("false")
	envp, _ := sysos.NewByteStringArray()
	cmd := &Command{
		Setgroups:      []byte("deny\n"),
		Fchdir:         fd,
		ExecvePathname: mustByteString(t, "/bin/false"),
		ExecveArgv:     argv,
		ExecveEnvp:     envp,
		Stdin:          Stdio{Kind: StdioInherit},
		Stdout:         Stdio{Kind: StdioInherit},
		Stderr:         Stdio{Kind: StdioInherit},
	}

	err := Run(cmd, 5*time.Second)
	if _, ok := err.(*UnsuccessfulError); !ok {
		t.Fatalf("err = %v (%T), want *UnsuccessfulError", err, err)
	}
}

// TestRunStdoutStderrShareDup2FD exercises the shape internal/action
// always produces: Stdout and Stderr both Dup2'd onto the same log file
// descriptor. Regression test for oldfd being closed after the first
// redirect, which broke the second.
func TestRunStdoutStderrShareDup2FD(t *testing.T) {
	testutil.UserNamespace(t)

	fd := openDirectory(t, t.TempDir())
	defer closeFD(t, fd)

	logPath := filepath.Join(t.TempDir(), "log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer logFile.Close()

	argv, _ := sysos.NewByteStringArray("sh", "-c", "echo out; echo err 1>&2")
	envp, _ := sysos.NewByteStringArray()
	cmd := &Command{
		Setgroups:      []byte("deny\n"),
		Fchdir:         fd,
		ExecvePathname: mustByteString(t, "/bin/sh"),
		ExecveArgv:     argv,
		ExecveEnvp:     envp,
		Stdin:          Stdio{Kind: StdioClose},
		Stdout:         Stdio{Kind: StdioDup2, OldFD: int(logFile.Fd())},
		Stderr:         Stdio{Kind: StdioDup2, OldFD: int(logFile.Fd())},
	}

	if err := Run(cmd, 5*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(contents); got != "out\nerr\n" {
		t.Fatalf("log contents = %q, want both stdout and stderr lines", got)
	}
}
