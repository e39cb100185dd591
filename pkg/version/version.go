// Package version wraps blang/semver for the engine's two uses of
// versions: feature/bundle version comparison (Version, VersionRange) and
// the engine binary's own build version (EngineVersion, GitCommit).
package version

import "fmt"

// EngineVersion indicates what version of feature-engine the binary
// belongs to; set via -ldflags at build time.
var EngineVersion string

// GitCommit indicates which git commit the binary was built from.
var GitCommit string

// String returns a pretty concatenation of EngineVersion and GitCommit.
func String() string {
	return fmt.Sprintf("feature-engine version: %s\ngit commit: %s\n", EngineVersion, GitCommit)
}
