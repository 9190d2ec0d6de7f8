// Package version reports the version of exprjit the running binary was built with.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is the version when the binary carries no module information, as in
// tests or a build from a source tree.
const Default = "dev"

const modulePath = "github.com/exprjit/exprjit"

// version is the cached result of GetVersion.
var version = fromBuildInfo(debug.ReadBuildInfo())

// GetVersion returns the version of exprjit from the build information: the
// main module's version when this is the exprjit command, otherwise the
// version of the exprjit dependency.
func GetVersion() string {
	return version
}

func fromBuildInfo(info *debug.BuildInfo, ok bool) string {
	if !ok {
		return Default
	}
	if info.Main.Path == modulePath {
		return versionOf(&info.Main)
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Replace != nil {
				// The replaced module is the one linked in.
				return versionOf(dep.Replace)
			}
			return versionOf(dep)
		}
	}
	return Default
}

func versionOf(m *debug.Module) string {
	// Versions are like "v1.0.0" or "v0.0.0-20220818123113-1948909ec0b1".
	if v := strings.TrimSpace(m.Version); v != "" && v != "(devel)" {
		return v
	}
	return Default
}
