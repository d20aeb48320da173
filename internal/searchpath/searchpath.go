// Package searchpath computes, for a module name, the ordered list of places
// its compiled binary may live.
//
// The list is rebuilt on every call from the current environment and the
// running executable's location; nothing is cached.
package searchpath

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
	"github.com/vk/dynmod/internal/fsutil"
	"github.com/vk/dynmod/internal/loaderr"
	"github.com/vk/dynmod/internal/platform"
)

// Candidate is one place a module binary may be found.
type Candidate struct {
	Dir    string
	Path   string
	Exists bool
}

// Candidates are ordered from highest to lowest priority.
type Candidates []Candidate

// Found returns the highest priority candidate that exists.
func (c Candidates) Found() (Candidate, bool) {
	for _, cand := range c {
		if cand.Exists {
			return cand, true
		}
	}
	return Candidate{}, false
}

// Paths returns every candidate path in order.
func (c Candidates) Paths() []string {
	paths := make([]string, len(c))
	for i, cand := range c {
		paths[i] = cand.Path
	}
	return paths
}

// Resolver computes Candidates.
type Resolver struct {
	executable func() (string, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExecutable replaces os.Executable as the source of the host's
// location.
func WithExecutable(exe func() (string, error)) Option {
	return func(r *Resolver) {
		r.executable = exe
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{executable: os.Executable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ordered candidates for module. The module-directory
// override in s, when set, must be an absolute path to an existing
// directory; otherwise Resolve fails before looking anywhere else.
func (r *Resolver) Resolve(ctx context.Context, module string, s config.Settings) (Candidates, error) {
	_, logger := ctxlog.WithModule(ctx, module)

	dirs, err := r.Dirs(s)
	if err != nil {
		return nil, err
	}

	file := platform.LibraryFile(module)
	candidates := make(Candidates, 0, len(dirs))
	for _, dir := range dirs {
		path := filepath.Join(dir, file)
		exists := fsutil.Exists(path)
		logger.Debug("Checked module search path.", "path", path, "exists", exists)
		candidates = append(candidates, Candidate{Dir: dir, Path: path, Exists: exists})
	}
	return candidates, nil
}

// Dirs returns the candidate directories in priority order: the override,
// then <exe>/../lib, <exe>/../../lib and the executable's own directory.
// Duplicates keep their first position.
func (r *Resolver) Dirs(s config.Settings) ([]string, error) {
	var dirs []string

	if s.ModDir != "" {
		if err := ValidateOverride(s.ModDir); err != nil {
			return nil, err
		}
		dirs = append(dirs, filepath.Clean(s.ModDir))
	}

	exeDir, err := fsutil.ExecutableDir(r.executable)
	if err != nil {
		return nil, err
	}
	dirs = append(dirs,
		filepath.Join(exeDir, "..", "lib"),
		filepath.Join(exeDir, "..", "..", "lib"),
		exeDir,
	)

	seen := make(map[string]struct{}, len(dirs))
	unique := dirs[:0]
	for _, d := range dirs {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}
	return unique, nil
}

// ValidateOverride checks the module-directory override.
func ValidateOverride(dir string) error {
	if !filepath.IsAbs(dir) {
		return loaderr.New(loaderr.KindPathOverrideInvalid, "").
			Path(dir).
			Detail(config.EnvModDir + " must be an absolute path").
			Build()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return loaderr.New(loaderr.KindPathOverrideInvalid, "").
			Path(dir).
			Detail(config.EnvModDir + " does not exist").
			Cause(err).
			Build()
	}
	if !info.IsDir() {
		return loaderr.New(loaderr.KindPathOverrideInvalid, "").
			Path(dir).
			Detail(config.EnvModDir + " is not a directory").
			Build()
	}
	return nil
}
