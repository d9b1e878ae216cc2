package action

import (
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// FromOCIProcess builds a PerformRunAction from an OCI process spec,
// giving the driver an OCI-shaped front door without adopting OCI's
// broader runtime lifecycle (create/start/delete stay out of scope).
// Process.Cwd is intentionally ignored: this module always runs the
// command in /build, the one working directory its fixed mount plan and
// chroot produce.
func FromOCIProcess(p *specs.Process, nixStorePath string, timeout time.Duration) PerformRunAction {
	return PerformRunAction{
		Program:      p.Args[0],
		Arguments:    append([]string(nil), p.Args...),
		Environment:  append([]string(nil), p.Env...),
		Timeout:      timeout,
		NixStorePath: nixStorePath,
	}
}
