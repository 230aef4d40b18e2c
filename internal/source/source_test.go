package source

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
sources:
  - name: scholarshipregion
    base_url: https://www.scholarshipregion.com
    list_url: https://www.scholarshipregion.com/category/scholarships/
    item_selector: article h2 a
    selectors:
      title: h1.entry-title
      description: div.entry-content p
  - name: opportunitydesk
    base_url: https://opportunitydesk.org
    list_url: https://opportunitydesk.org/category/scholarships/
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(reg.Sources))
	}

	s, err := reg.Get("scholarshipregion")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Selectors.Title != "h1.entry-title" {
		t.Errorf("title selector = %q", s.Selectors.Title)
	}
	if s.ItemSelector != "article h2 a" {
		t.Errorf("item selector = %q", s.ItemSelector)
	}

	// Pure-fallback source gets the default item selector.
	od, err := reg.Get("opportunitydesk")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if od.ItemSelector != "a" {
		t.Errorf("default item selector = %q", od.ItemSelector)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "sources:\n  - list_url: https://example.com\n"},
		{"missing list_url", "sources:\n  - name: x\n"},
		{"duplicate name", "sources:\n  - name: x\n    list_url: https://a\n  - name: x\n    list_url: https://b\n"},
		{"bad yaml", "sources: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := reg.Names()
	want := []string{"opportunitydesk", "scholarshipregion"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
