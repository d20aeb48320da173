// Package build runs the external toolchain that turns a module's source
// directory into a shared library, and copies the result to where the
// search path resolver will look for it.
//
// The child's stdout and stderr are drained by two goroutines at once.
// Reading them one after the other can deadlock: the child blocks writing
// to a full stderr pipe while the parent waits for stdout to close.
package build
