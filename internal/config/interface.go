package config

import "context"

// ManifestFile is the name of the optional build manifest in a module's
// source directory.
const ManifestFile = "module.hcl"

// ManifestLoader is the interface for a format-specific manifest loader.
type ManifestLoader interface {
	// LoadManifest reads the manifest at path, evaluating expressions
	// against vars. A missing file yields an empty Manifest and no error.
	LoadManifest(ctx context.Context, path string, vars ManifestVars) (*Manifest, error)
}
