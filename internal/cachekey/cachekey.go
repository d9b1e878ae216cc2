// Package cachekey describes, without implementing, the hash a scheduler
// feeds a run action's inputs into to decide whether a previous result can
// be reused. The hash algorithm itself (BLAKE3 in the original source) is
// an external, swappable collaborator: this package only fixes the byte
// sequence fed to it.
package cachekey

import (
	"encoding/binary"
	"time"
)

// Hasher is the contract a cache-key hash algorithm must satisfy. It
// mirrors the original source's Blake3 wrapper: an incremental writer that
// finishes into a fixed-size digest.
type Hasher interface {
	Write(p []byte) (int, error)
	Sum32() [32]byte
}

// RunActionInput feeds h the canonical byte sequence for a run action's
// cache key: the program path, argv, envp, the timeout, and the fixed
// compatibility symlinks every container gets (bin/sh, usr/bin/env),
// since those affect the container's observable filesystem even though
// they are never listed as explicit inputs. Each string is length-
// prefixed so that, for example, argv ["ab", "c"] cannot collide with
// ["a", "bc"].
func RunActionInput(h Hasher, program string, argv, envp []string, timeout time.Duration) [32]byte {
	writeString(h, program)
	writeStringSlice(h, argv)
	writeStringSlice(h, envp)

	var durationBuf [8]byte
	binary.BigEndian.PutUint64(durationBuf[:], uint64(timeout))
	h.Write(durationBuf[:])

	// The fixed compatibility symlinks, by link path only: their targets
	// (which bash or coreutils a run action resolves to) are not fed to h.
	writeStringSlice(h, []string{"bin/sh", "usr/bin/env"})

	return h.Sum32()
}

func writeString(h Hasher, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeStringSlice(h Hasher, strs []string) {
	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(len(strs)))
	h.Write(countBuf[:])
	for _, s := range strs {
		writeString(h, s)
	}
}
