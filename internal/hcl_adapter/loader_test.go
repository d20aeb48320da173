package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dynmod/internal/config"
)

var testVars = config.ManifestVars{Module: "greeter", Profile: "release", TargetDir: "/tmp/target"}

func TestLoadManifest_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	m, err := NewLoader().LoadManifest(context.Background(), filepath.Join(t.TempDir(), config.ManifestFile), testVars)

	require.NoError(t, err)
	assert.Equal(t, &config.Manifest{}, m)
}

func TestLoadManifest_DecodesBuildBlockWithVariables(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	manifestHCL := `
		build {
			tags  = ["sqlite", "${profile}"]
			flags = ["-trimpath", "-ldflags=-X main.name=${module}"]
			env   = {
				CGO_ENABLED = "1"
				OUT         = "${target_dir}/extra"
			}
		}
	`
	path := filepath.Join(t.TempDir(), config.ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(manifestHCL), 0o644))

	// --- Act ---
	m, err := NewLoader().LoadManifest(context.Background(), path, testVars)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"sqlite", "release"}, m.Build.Tags)
	assert.Equal(t, []string{"-trimpath", "-ldflags=-X main.name=greeter"}, m.Build.Flags)
	assert.Equal(t, map[string]string{"CGO_ENABLED": "1", "OUT": "/tmp/target/extra"}, m.Build.Env)
}

func TestDecode_EmptyManifest(t *testing.T) {
	t.Parallel()

	m, err := NewLoader().Decode([]byte(""), "module.hcl", testVars)

	require.NoError(t, err)
	assert.Empty(t, m.Build.Tags)
}

func TestDecode_SyntaxErrorIsReported(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Decode([]byte(`build {`), "module.hcl", testVars)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest module.hcl")
}

func TestDecode_UnknownVariableIsReported(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Decode([]byte(`build { tags = [nope] }`), "module.hcl", testVars)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode manifest module.hcl")
}
