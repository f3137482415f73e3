package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the optional file that pins which files supply each buffer.
const ManifestName = "playground.toml"

// Manifest is the decoded playground.toml. Sources keys accept any kind
// name or alias; values are slash-separated paths relative to the bundle
// root.
//
//	[sources]
//	html = "pages/home.html"
//	js   = "dist/main.js"
type Manifest struct {
	Sources map[string]string `toml:"sources"`
}

// ParseManifest decodes a manifest and resolves its kind names.
func ParseManifest(data []byte) (map[Kind]string, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}

	pinned := make(map[Kind]string, len(m.Sources))
	for name, p := range m.Sources {
		k, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ManifestName, err)
		}
		if _, dup := pinned[k]; dup {
			return nil, fmt.Errorf("%s: %s pinned twice", ManifestName, k)
		}
		clean := path.Clean(p)
		if !fs.ValidPath(clean) {
			return nil, fmt.Errorf("%s: invalid path %q for %s", ManifestName, p, k)
		}
		pinned[k] = clean
	}
	return pinned, nil
}

// readManifest returns the pinned sources of fsys, or nil without a manifest.
func readManifest(fsys fs.FS) (map[Kind]string, error) {
	data, err := fs.ReadFile(fsys, ManifestName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestName, err)
	}
	return ParseManifest(data)
}
