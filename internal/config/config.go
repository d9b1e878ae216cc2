// Package config resolves the handful of external paths snowflake needs
// but cannot discover on its own: the Nix store paths of bash and
// coreutils, used to populate /bin/sh and /usr/bin/env inside every
// container. There are no built-in defaults: each path comes from an
// environment variable, and an optional TOML file overlay takes
// precedence over it.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	bashPathEnvVar      = "SNOWFLAKE_BASH_PATH"
	coreutilsPathEnvVar = "SNOWFLAKE_COREUTILS_PATH"
)

// Config holds the resolved paths a run action needs.
//
// The original Rust source reads both paths from the single environment
// variable SNOWFLAKE_BASH_PATH (see config.rs), which is almost certainly
// a copy-paste mistake: it leaves COREUTILS_PATH permanently aliased to
// BASH_PATH. This package uses two distinct variables instead.
type Config struct {
	// BashPath is the Nix store path containing bash's bin/bash.
	BashPath string
	// CoreutilsPath is the Nix store path containing coreutils' bin/env.
	CoreutilsPath string
}

// File is the shape of an optional TOML overlay file. Any field left
// unset in the file falls through to the environment-variable value.
type File struct {
	BashPath      string `toml:"bash_path"`
	CoreutilsPath string `toml:"coreutils_path"`
}

// Resolve builds a Config from the environment, then overlays tomlPath's
// contents if tomlPath is non-empty. It is an error for either path to
// remain unset once both sources have been consulted.
func Resolve(tomlPath string) (Config, error) {
	c := Config{
		BashPath:      os.Getenv(bashPathEnvVar),
		CoreutilsPath: os.Getenv(coreutilsPathEnvVar),
	}

	if tomlPath != "" {
		var f File
		if _, err := toml.DecodeFile(tomlPath, &f); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", tomlPath, err)
		}
		if f.BashPath != "" {
			c.BashPath = f.BashPath
		}
		if f.CoreutilsPath != "" {
			c.CoreutilsPath = f.CoreutilsPath
		}
	}

	if c.BashPath == "" {
		return Config{}, fmt.Errorf("config: %s is not set and no bash_path overlay was given", bashPathEnvVar)
	}
	if c.CoreutilsPath == "" {
		return Config{}, fmt.Errorf("config: %s is not set and no coreutils_path overlay was given", coreutilsPathEnvVar)
	}
	return c, nil
}
