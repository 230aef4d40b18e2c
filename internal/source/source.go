// Package source loads the per-source selector registry. Each source names a
// listing page to walk and one optional CSS selector per field; a source with
// no selectors at all runs in pure-fallback mode.
package source

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Selectors holds one optional CSS selector per extracted field. Empty
// selectors mean the heuristic ladder alone decides the value.
type Selectors struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Reward       string `yaml:"reward"`
	StartDate    string `yaml:"start_date"`
	EndDate      string `yaml:"end_date"`
	Requirements string `yaml:"requirements"`
	Eligibility  string `yaml:"eligibility"`
	Tags         string `yaml:"tags"`
	Levels       string `yaml:"levels"`
}

// Source describes one scholarship listing site.
type Source struct {
	Name         string    `yaml:"name"`
	BaseURL      string    `yaml:"base_url"`
	ListURL      string    `yaml:"list_url"`
	ItemSelector string    `yaml:"item_selector"` // listing entries; default "a"
	MaxItems     int       `yaml:"max_items"`     // 0 = pipeline default
	Selectors    Selectors `yaml:"selectors"`
}

// Registry is the full set of configured sources.
type Registry struct {
	Sources []Source `yaml:"sources"`
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	return Parse(data)
}

// Parse decodes registry YAML and validates each entry.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, eris.Wrap(err, "source: unmarshal registry")
	}

	seen := make(map[string]bool, len(reg.Sources))
	for i := range reg.Sources {
		s := &reg.Sources[i]
		if s.Name == "" {
			return nil, eris.Errorf("source: entry %d has no name", i)
		}
		if seen[s.Name] {
			return nil, eris.Errorf("source: duplicate name %q", s.Name)
		}
		seen[s.Name] = true
		if s.ListURL == "" {
			return nil, eris.Errorf("source: %s has no list_url", s.Name)
		}
		if s.ItemSelector == "" {
			s.ItemSelector = "a"
		}
	}
	return &reg, nil
}

// Get returns the named source.
func (r *Registry) Get(name string) (*Source, error) {
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			return &r.Sources[i], nil
		}
	}
	return nil, eris.Errorf("source: unknown source %q", name)
}

// Names returns all configured source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
