package tool

import "runtime/debug"

// Version is overridden at build time with -ldflags "-X .../tool.Version=...".
var Version = "dev"

// VersionString returns Version, falling back to the module version recorded in the
// binary when built with go install.
func VersionString() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
