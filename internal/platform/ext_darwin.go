//go:build darwin

package platform

func detect() Suffixes {
	return Suffixes{Library: "dylib", DebugInfo: "dSYM"}
}
