package build

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vk/dynmod/internal/fsutil"
)

// SourceDirPrefix is prepended to a module name to form the name of its
// source directory.
const SourceDirPrefix = "mod-"

// DefaultIgnore lists directories never searched for module sources, as
// doublestar patterns relative to the search root.
var DefaultIgnore = []string{
	"**/.*",
	"**/node_modules",
	"**/target",
	"**/vendor",
	"**/testdata",
}

// Ignored reports whether rel (slash separated, relative to the root)
// matches one of the patterns.
func Ignored(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// SourceRoot picks where to look for module sources when no override is
// given: the nearest ancestor of dir holding a go.work, else a go.mod, else
// dir itself.
func SourceRoot(dir string) string {
	if root, ok := fsutil.FindAncestorWith(dir, "go.work"); ok {
		return root
	}
	if root, ok := fsutil.FindAncestorWith(dir, "go.mod"); ok {
		return root
	}
	return dir
}

// FindSourceDir searches root for a directory named mod-<module>, skipping
// ignored directories and not descending into other modules. The shallowest
// match wins, ties broken lexically.
func FindSourceDir(root, module string, ignore []string) (string, bool, error) {
	want := SourceDirPrefix + module
	var matches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if Ignored(filepath.ToSlash(rel), ignore) {
			return filepath.SkipDir
		}
		if d.Name() == want {
			matches = append(matches, path)
			return filepath.SkipDir
		}
		if strings.HasPrefix(d.Name(), SourceDirPrefix) {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if len(matches) == 0 {
		return "", false, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		di := strings.Count(matches[i], string(filepath.Separator))
		dj := strings.Count(matches[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return matches[0], true, nil
}
