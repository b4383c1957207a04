// Package version reports the build version of the switchover tool,
// mirroring github.com/openshift/hypershift's pkg/version: a single
// ldflags-settable string, defaulting to "dev" for unreleased builds.
package version

// version is set via -ldflags "-X .../version.version=vX.Y.Z" at
// release build time.
var version = "dev"

// Get returns the tool's build version, recorded in every state
// document write (spec.md §6 `tool_version`).
func Get() string {
	return version
}
