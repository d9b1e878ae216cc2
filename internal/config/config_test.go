package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFromEnv(t *testing.T) {
	t.Setenv(bashPathEnvVar, "/nix/store/aaa-bash-5.2")
	t.Setenv(coreutilsPathEnvVar, "/nix/store/bbb-coreutils-9.3")

	c, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.BashPath != "/nix/store/aaa-bash-5.2" {
		t.Errorf("BashPath = %q", c.BashPath)
	}
	if c.CoreutilsPath != "/nix/store/bbb-coreutils-9.3" {
		t.Errorf("CoreutilsPath = %q", c.CoreutilsPath)
	}
}

func TestResolveDistinctVariables(t *testing.T) {
	// Regression guard for the original source's single-variable bug: the
	// two paths must be independently settable.
	t.Setenv(bashPathEnvVar, "/nix/store/aaa-bash-5.2")
	t.Setenv(coreutilsPathEnvVar, "/nix/store/ccc-coreutils-9.4")

	c, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.BashPath == c.CoreutilsPath {
		t.Errorf("BashPath and CoreutilsPath resolved to the same value: %q", c.BashPath)
	}
}

func TestResolveTOMLOverlay(t *testing.T) {
	t.Setenv(bashPathEnvVar, "/nix/store/env-bash")
	t.Setenv(coreutilsPathEnvVar, "/nix/store/env-coreutils")

	dir := t.TempDir()
	overlay := filepath.Join(dir, "snowflake.toml")
	contents := "bash_path = \"/nix/store/overlay-bash\"\n"
	if err := os.WriteFile(overlay, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Resolve(overlay)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.BashPath != "/nix/store/overlay-bash" {
		t.Errorf("BashPath = %q, want overlay value", c.BashPath)
	}
	if c.CoreutilsPath != "/nix/store/env-coreutils" {
		t.Errorf("CoreutilsPath = %q, want env fallback", c.CoreutilsPath)
	}
}

func TestResolveMissing(t *testing.T) {
	t.Setenv(bashPathEnvVar, "")
	t.Setenv(coreutilsPathEnvVar, "")

	if _, err := Resolve(""); err == nil {
		t.Fatal("Resolve: expected an error when neither variable is set")
	}
}
