//go:build linux

package platform

func detect() Suffixes {
	return Suffixes{Library: "so", DebugInfo: "so.dwp"}
}
