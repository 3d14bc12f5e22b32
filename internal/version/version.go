// Package version exposes the build metadata stamped into the permkit binary.
package version

import "runtime"

// Stamped at build time, e.g.
//
//	go build -ldflags "-X github.com/permkit-dev/permkit/internal/version.Version=v0.2.0 \
//	  -X github.com/permkit-dev/permkit/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is a snapshot of the build metadata plus the runtime environment.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get captures the current build and runtime information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns just the semantic version.
func (i Info) String() string {
	return i.Version
}

// Full renders everything on one line for the version command.
func (i Info) Full() string {
	return i.Version + " (" + i.Commit + ") built " + i.BuildDate + " " + i.GoVersion + " " + i.Platform
}
