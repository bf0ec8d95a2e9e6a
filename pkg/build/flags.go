package build

// ldFlags holds build-time information injected during compilation, e.g.:
//
//	go build -ldflags "-X wearaudio/pkg/build.buildName=wearaudio -X wearaudio/pkg/build.buildVersion=0.2.0"
//
// Fields left unset by the build fall back to development defaults.
type ldFlags struct {
	Name        string // Application name
	Description string // One-line description for the CLI
	Time        string // Build timestamp
	Commit      string // Git commit hash
	Version     string // Semantic version
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	buildFlags = &ldFlags{
		Name:        "wearaudio",
		Description: "Real-time audio capture/playback pipeline with pluggable block algorithms",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies any build information supplied via ldflags into the
// buildFlags struct. Missing flags keep their development defaults, so a
// plain `go run .` works without injecting anything.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
