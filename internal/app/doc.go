// Package app wires the loader's parts together for the command-line front
// end: it owns the logger, reads the environment and exposes one method per
// user-facing operation, independent of how arguments were parsed.
package app
