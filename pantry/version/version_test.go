package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	defer func(v, c, b string) { Version, Commit, BuildTime = v, c, b }(Version, Commit, BuildTime)

	if got := String(); got != "dev" {
		t.Errorf("String() = %q, want %q", got, "dev")
	}

	Version, Commit, BuildTime = "1.2.3", "abc123", "2024-01-15T10:30:00Z"
	if got, want := String(), "1.2.3 (abc123, built 2024-01-15T10:30:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Driver == "" {
		t.Error("Driver is empty, want a version or \"unknown\"")
	}
	if !strings.Contains(info.Long(), DriverModule) {
		t.Errorf("Long() = %q, want it to name %s", info.Long(), DriverModule)
	}
}
