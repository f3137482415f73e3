package bundle

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

// DefaultTemplate is used when a workspace is created without naming one.
const DefaultTemplate = "default"

// ErrUnknownTemplate is returned by Template for names not in the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

//go:embed templates.yaml
var templatesYAML []byte

// Template is a named starter bundle.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Bundle      Bundle `yaml:"bundle" json:"bundle"`
}

var (
	catalogOnce sync.Once
	catalog     map[string]Template
	catalogErr  error
)

// ParseTemplates decodes a YAML list of templates.
func ParseTemplates(data []byte) (map[string]Template, error) {
	var list []Template
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	out := make(map[string]Template, len(list))
	for _, t := range list {
		if t.Name == "" {
			return nil, errors.New("template without name")
		}
		if _, dup := out[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.Name)
		}
		out[t.Name] = t
	}
	return out, nil
}

func loadCatalog() (map[string]Template, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = ParseTemplates(templatesYAML)
	})
	return catalog, catalogErr
}

// Templates returns the embedded catalog sorted by name.
func Templates() ([]Template, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FromTemplate returns the bundle of the named template. An empty name
// selects DefaultTemplate.
func FromTemplate(name string) (Bundle, error) {
	if name == "" {
		name = DefaultTemplate
	}
	c, err := loadCatalog()
	if err != nil {
		return Bundle{}, err
	}
	t, ok := c[name]
	if !ok {
		return Bundle{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t.Bundle, nil
}
