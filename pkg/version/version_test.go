package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("platform = %s/%s, want %s/%s", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "applyrag ") {
		t.Errorf("unexpected prefix: %s", s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("version missing from %q", s)
	}
}
