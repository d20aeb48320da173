// Package dl opens built module libraries and invokes their entry point.
//
// Two ABIs are supported. Go-ABI modules are Go plugins exporting
// DynmodEntry; C-ABI modules are c-shared libraries exporting dynmod_entry,
// opened through purego without cgo.
//
// Opened libraries are never closed. Go plugins cannot be unloaded, and a
// C-ABI handle backs code the returned value may still point into, so every
// library stays mapped for the life of the process.
package dl
