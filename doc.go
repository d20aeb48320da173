// Package dynmod loads optional modules into a running program from
// separately built shared libraries.
//
// A module named "greeter" lives in a source directory named mod-greeter
// and is compiled on demand into libgreeter.so (libgreeter.dylib on macOS).
// The host asks for it by name:
//
//	g, err := dynmod.LoadAs[greeter.Greeter]("greeter")
//
// Load looks for the library in DYNMOD_MOD_DIR, then in <exe>/../lib,
// <exe>/../../lib and the executable's own directory. When it is missing,
// or when DYNMOD_REBUILD is set, the module is built with the go toolchain
// first. Each module is loaded at most once per process; every caller gets
// the same handle, and a module that failed to load keeps failing with the
// same error.
//
// A Go-ABI module (the default) is a plugin whose main package exports
//
//	func DynmodEntry() any
//
// compiled only under the dynmod_impl build tag. With DYNMOD_ABI=c the
// module is built with -buildmode=c-shared, must export dynmod_entry, and
// loads as a *ForeignModule.
//
// Loaded libraries are never unloaded.
package dynmod
