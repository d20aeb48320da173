// Package config defines the loader's format-agnostic configuration: the
// Settings read from the process environment on every load attempt, and the
// Manifest model a module's source directory may provide to tune its build.
//
// Concrete manifest formats, such as HCL, are implemented in separate
// packages behind the ManifestLoader interface.
package config
