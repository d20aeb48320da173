package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables recognized by the loader.
const (
	EnvModDir    = "DYNMOD_MOD_DIR"
	EnvTargetDir = "DYNMOD_TARGET_DIR"
	EnvSrcDir    = "DYNMOD_SRC_DIR"
	EnvSrcRoot   = "DYNMOD_SRC_ROOT"
	EnvBuild     = "DYNMOD_BUILD"
	EnvRebuild   = "DYNMOD_REBUILD"
	EnvABI       = "DYNMOD_ABI"
	EnvDebug     = "DYNMOD_DEBUG"

	// Set for the build process only.
	EnvModule = "DYNMOD_MODULE"
	EnvOutput = "DYNMOD_OUTPUT"
)

// Lookup reads one environment variable, like os.LookupEnv.
type Lookup func(key string) (string, bool)

// OSLookup reads the real process environment.
var OSLookup Lookup = os.LookupEnv

// BuildMode controls whether and how the build trigger runs.
type BuildMode int

const (
	// BuildQuiet builds when needed, capturing output and showing it only
	// on failure.
	BuildQuiet BuildMode = iota
	// BuildSkip never builds; the binary must already be present.
	BuildSkip
	// BuildVerbose builds when needed and streams output live.
	BuildVerbose
)

func (m BuildMode) String() string {
	switch m {
	case BuildSkip:
		return "skip"
	case BuildVerbose:
		return "verbose"
	default:
		return "quiet"
	}
}

// ABI selects how module binaries are built and opened.
type ABI string

const (
	ABIGo ABI = "go" // -buildmode=plugin, opened with package plugin
	ABIC  ABI = "c"  // -buildmode=c-shared, opened with dlopen
)

// Settings is a snapshot of the loader's environment configuration.
type Settings struct {
	ModDir    string // module-directory override, validated by the resolver
	TargetDir string
	SrcDir    string
	SrcRoot   string
	Build     BuildMode
	Rebuild   bool
	ABI       ABI
	Debug     bool
}

// FromEnv reads Settings through lookup. Unknown build modes or ABIs are
// configuration errors.
func FromEnv(lookup Lookup) (Settings, error) {
	if lookup == nil {
		lookup = OSLookup
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	s := Settings{
		ModDir:    get(EnvModDir),
		TargetDir: get(EnvTargetDir),
		SrcDir:    get(EnvSrcDir),
		SrcRoot:   get(EnvSrcRoot),
		Rebuild:   parseBool(get(EnvRebuild)),
		Debug:     parseBool(get(EnvDebug)),
		ABI:       ABIGo,
	}

	switch mode := strings.ToLower(get(EnvBuild)); mode {
	case "", "1", "quiet":
		s.Build = BuildQuiet
	case "0", "skip":
		s.Build = BuildSkip
	case "verbose":
		s.Build = BuildVerbose
	default:
		return Settings{}, fmt.Errorf("invalid %s %q: must be 'skip', 'quiet' or 'verbose'", EnvBuild, mode)
	}

	switch abi := ABI(strings.ToLower(get(EnvABI))); abi {
	case "", ABIGo:
	case ABIC:
		s.ABI = ABIC
	default:
		return Settings{}, fmt.Errorf("invalid %s %q: must be 'go' or 'c'", EnvABI, abi)
	}

	return s, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
