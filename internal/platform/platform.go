package platform

import "sync"

// Suffixes are the file extensions, without the leading dot, used for
// module binaries on the target OS.
type Suffixes struct {
	Library   string
	DebugInfo string
}

var extensions = sync.OnceValue(detect)

// Extensions returns the suffixes for the target OS. The value is computed
// once per process.
func Extensions() Suffixes {
	return extensions()
}

// LibraryFile returns the file name a module binary is expected to have,
// e.g. "libgreeter.so".
func LibraryFile(module string) string {
	return "lib" + module + "." + Extensions().Library
}

// DebugInfoFile returns the file name of the module's detached debug info,
// e.g. "libgreeter.so.dwp".
func DebugInfoFile(module string) string {
	return "lib" + module + "." + Extensions().DebugInfo
}
