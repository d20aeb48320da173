// Package hcl_adapter provides the HCL implementation of the manifest
// loading interface defined in the `config` package. It parses a module's
// module.hcl and binds it to the format-agnostic config.Manifest.
package hcl_adapter
