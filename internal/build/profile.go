package build

import (
	"runtime/debug"
	"strings"
)

// Build profiles. A module is built with the same profile as its host.
const (
	ProfileDebug   = "debug"
	ProfileRelease = "release"
)

// HostProfile reports ProfileDebug when the running binary was compiled
// with optimizations disabled (-gcflags containing -N).
func HostProfile() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ProfileRelease
	}
	return profileFromSettings(info.Settings)
}

func profileFromSettings(settings []debug.BuildSetting) string {
	for _, s := range settings {
		if s.Key == "-gcflags" && strings.Contains(s.Value, "-N") {
			return ProfileDebug
		}
	}
	return ProfileRelease
}
