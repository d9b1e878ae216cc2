// Package diag provides the structured logging and advisory capability
// preflight that accompanies every run action, in the style of runsc's
// own startup logging (runsc/cli.Main logs the resolved configuration
// before doing anything, and sandbox.go checks capabilities before
// choosing a namespace strategy).
package diag

import (
	"github.com/sirupsen/logrus"
	"github.com/syndtr/gocapability/capability"
)

// Log is the package-wide logger. Callers that want a different
// destination or format can reassign it before calling into this package;
// it defaults to logrus's standard logger.
var Log = logrus.StandardLogger()

// LogRunAction records the shape of an about-to-run container before
// clone3 is ever called.
func LogRunAction(program string, arguments []string, scratchDir, nixStorePath string) {
	Log.WithFields(logrus.Fields{
		"program":        program,
		"argument_count": len(arguments),
		"scratch_dir":    scratchDir,
		"nix_store":      nixStorePath,
	}).Info("preparing run action")
}

// LogCapabilityPreflight logs, but never acts on, whether this process
// retains CAP_SYS_ADMIN outside any user namespace versus relying
// entirely on the capabilities a fresh user namespace grants its creator.
// This is purely informational: spec.md scopes capability dropping and
// preflight enforcement out, so a failed or inconclusive check here never
// blocks a spawn.
func LogCapabilityPreflight() {
	caps, err := capability.NewPid2(0)
	if err != nil {
		Log.WithError(err).Debug("capability preflight: could not inspect process capabilities")
		return
	}
	if err := caps.Load(); err != nil {
		Log.WithError(err).Debug("capability preflight: could not load process capabilities")
		return
	}

	hasSysAdmin := caps.Get(capability.EFFECTIVE, capability.CAP_SYS_ADMIN)
	Log.WithField("cap_sys_admin", hasSysAdmin).Debug("capability preflight")
}
