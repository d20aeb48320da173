package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.ManifestLoader
// interface.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.ManifestLoader = (*Loader)(nil)

// fileRoot decodes all top-level blocks a manifest may contain.
type fileRoot struct {
	Build  *buildBlock `hcl:"build,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type buildBlock struct {
	Tags  []string          `hcl:"tags,optional"`
	Flags []string          `hcl:"flags,optional"`
	Env   map[string]string `hcl:"env,optional"`
}

// LoadManifest reads and decodes the manifest at path. A missing file is not
// an error; the module simply builds with defaults.
func (l *Loader) LoadManifest(ctx context.Context, path string, vars config.ManifestVars) (*config.Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No module manifest found, using defaults.", "path", path)
			return &config.Manifest{}, nil
		}
		return nil, fmt.Errorf("error reading manifest %s: %w", path, err)
	}

	m, err := l.Decode(src, path, vars)
	if err != nil {
		return nil, err
	}
	logger.Debug("Module manifest loaded.", "path", path, "tags", m.Build.Tags, "flags", m.Build.Flags, "env_count", len(m.Build.Env))
	return m, nil
}

// Decode parses manifest source. filename is only used in diagnostics.
func (l *Loader) Decode(src []byte, filename string, vars config.ManifestVars) (*config.Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(vars), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	return translateManifest(&root), nil
}

// evalContext exposes the build's identity to manifest expressions, so
// `flags = ["-ldflags=-X main.name=${module}"]` works.
func evalContext(vars config.ManifestVars) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"module":     cty.StringVal(vars.Module),
			"profile":    cty.StringVal(vars.Profile),
			"target_dir": cty.StringVal(vars.TargetDir),
		},
	}
}

func translateManifest(root *fileRoot) *config.Manifest {
	m := &config.Manifest{}
	if root.Build == nil {
		return m
	}
	m.Build = config.BuildSettings{
		Tags:  root.Build.Tags,
		Flags: root.Build.Flags,
		Env:   root.Build.Env,
	}
	return m
}
