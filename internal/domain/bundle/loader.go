package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoSources is returned by LoadDir when a directory holds none of the three buffers.
var ErrNoSources = errors.New("no source files found")

// patterns lists, per kind, the globs tried in order. The first pattern
// matching at least one file wins; within a pattern the lexically first
// match is used.
var patterns = map[Kind][]string{
	Markup: {"index.html", "*.html", "**/*.html"},
	Style:  {"style.css", "*.css", "**/*.css"},
	Script: {"app.js", "script.js", "*.js", "**/*.js"},
}

// LoadDir reads a bundle from a directory on disk.
func LoadDir(dir string) (Bundle, Sources, error) {
	return LoadFS(os.DirFS(dir))
}

// Sources records which file supplied each buffer.
type Sources map[Kind]string

// LoadFS reads a bundle from fsys. Files pinned by a playground.toml win
// over the search patterns; kinds without a matching file stay empty.
func LoadFS(fsys fs.FS) (Bundle, Sources, error) {
	pinned, err := readManifest(fsys)
	if err != nil {
		return Bundle{}, nil, err
	}

	var b Bundle
	sources := make(Sources)

	for _, k := range Kinds {
		path, ok := pinned[k]
		if !ok {
			if path, err = findSource(fsys, patterns[k]); err != nil {
				return Bundle{}, nil, err
			}
		}
		if path == "" {
			continue
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return Bundle{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		content, err := DecodeSource(data)
		if err != nil {
			return Bundle{}, nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := b.Set(k, content); err != nil {
			return Bundle{}, nil, fmt.Errorf("%s: %w", path, err)
		}
		sources[k] = path
	}

	if len(sources) == 0 {
		return Bundle{}, nil, ErrNoSources
	}
	return b, sources, nil
}

func findSource(fsys fs.FS, globs []string) (string, error) {
	for _, pattern := range globs {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", nil
}

// Watched reports whether a changed path could alter a bundle loaded from
// the same directory.
func Watched(path string) bool {
	if path == ManifestName {
		return true
	}
	for _, globs := range patterns {
		for _, pattern := range globs {
			if ok, _ := doublestar.PathMatch("**/"+pattern, path); ok {
				return true
			}
			if ok, _ := doublestar.PathMatch(pattern, path); ok {
				return true
			}
		}
	}
	return false
}
