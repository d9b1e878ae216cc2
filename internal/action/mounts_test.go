package action

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCollectMountsOrderAndFlags(t *testing.T) {
	mounts, err := collectMounts("/nix/store")
	if err != nil {
		t.Fatalf("collectMounts: %v", err)
	}
	if len(mounts) != 4 {
		t.Fatalf("len(mounts) = %d, want 4 (private remount, proc, bind, remount-rdonly)", len(mounts))
	}

	if mounts[0].Target.String() != "/" {
		t.Errorf("mounts[0].Target = %q, want \"/\"", mounts[0].Target.String())
	}
	if mounts[0].Mountflags&unix.MS_PRIVATE == 0 {
		t.Error("mounts[0] must set MS_PRIVATE")
	}

	if mounts[1].Target.String() != "proc" {
		t.Errorf("mounts[1].Target = %q, want \"proc\"", mounts[1].Target.String())
	}
	if mounts[1].Filesystemtype.String() != "proc" {
		t.Errorf("mounts[1].Filesystemtype = %q, want \"proc\"", mounts[1].Filesystemtype.String())
	}

	if mounts[2].Source.String() != "/nix/store" {
		t.Errorf("mounts[2].Source = %q, want the nix store path", mounts[2].Source.String())
	}
	if mounts[2].Mountflags&unix.MS_RDONLY != 0 {
		t.Error("mounts[2] (the bind step) must not itself be read-only")
	}

	if mounts[3].Mountflags&unix.MS_RDONLY == 0 || mounts[3].Mountflags&unix.MS_REMOUNT == 0 {
		t.Error("mounts[3] must remount read-only")
	}
	if mounts[3].Target.String() != mounts[2].Target.String() {
		t.Error("the remount step must target the same path as the bind step")
	}
}
