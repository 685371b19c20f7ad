// pantry/version/version.go
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/mongocrud/pantry/version.Version=1.0.0 \
//	                   -X github.com/dalemusser/mongocrud/pantry/version.Commit=abc123 \
//	                   -X github.com/dalemusser/mongocrud/pantry/version.BuildTime=2024-01-15T10:30:00Z"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains version and build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Driver    string `json:"mongo_driver"`
}

// DriverModule is the module path whose version Get reports as Driver.
const DriverModule = "go.mongodb.org/mongo-driver"

// Get returns the current version info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Driver:    driverVersion(),
	}
}

func driverVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, d := range bi.Deps {
		if d.Path == DriverModule {
			if d.Replace != nil {
				return d.Replace.Version
			}
			return d.Version
		}
	}
	return "unknown"
}

// String returns a human-readable version string.
//
// Example output: "1.2.3 (abc123, built 2024-01-15T10:30:00Z)"
func String() string {
	if Version == "dev" {
		return "dev"
	}
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}

// Long is String plus the toolchain, platform and driver.
func (i Info) Long() string {
	return fmt.Sprintf("%s\n%s %s/%s\n%s %s", String(), i.GoVersion, i.OS, i.Arch, DriverModule, i.Driver)
}
