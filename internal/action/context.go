// Package action implements the run-action driver: given a scratch
// directory and a program to execute, it builds the minimal filesystem
// root a container needs (a handful of directories, two compatibility
// symlinks, and a small fixed mount plan) and hands the assembled
// container.Command off to container.Run.
package action

import "os"

// ActionContext carries the two descriptors every action needs: the
// scratch directory the container's root is built under, and the file
// the container's stdout/stderr are redirected to.
type ActionContext struct {
	// ScratchDir is an O_DIRECTORY descriptor for the action's private
	// scratch directory. The caller owns it and must keep it open for at
	// least the duration of Perform.
	ScratchDir *os.File
	// LogFile is the descriptor the container's stdout and stderr are
	// duplicated onto.
	LogFile *os.File
}
