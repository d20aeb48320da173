package config

// Manifest is the format-agnostic representation of a module's build
// manifest.
type Manifest struct {
	Build BuildSettings
}

// BuildSettings extend the build invocation for one module.
type BuildSettings struct {
	Tags  []string          // extra build tags, added after the impl tag
	Flags []string          // extra arguments placed before "-o"
	Env   map[string]string // extra environment for the build process
}

// ManifestVars are the values a manifest's expressions may refer to.
type ManifestVars struct {
	Module    string
	Profile   string
	TargetDir string
}
