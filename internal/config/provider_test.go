package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ismparse/internal"
)

func TestDefaultCategories(t *testing.T) {
	cases := map[string][]string{
		"Supplier Deliveries":    {"Slower", "Faster"},
		"Inventories":            {"Higher", "Lower"},
		"Customers' Inventories": {"Too High", "Too Low"},
		"Inventory Sentiment":    {"Too High", "Too Low"},
		"Prices":                 {"Increasing", "Decreasing"},
		"New Orders":             {"Growing", "Declining"},
	}
	for index, want := range cases {
		if diff := cmp.Diff(want, DefaultCategories(index)); diff != "" {
			t.Fatalf("%s categories mismatch (-want +got):\n%s", index, diff)
		}
	}
}

func TestDefaultProvider(t *testing.T) {
	p := DefaultProvider()

	if got := p.Indices(internal.Manufacturing); len(got) == 0 || got[0] != "Manufacturing PMI" {
		t.Fatalf("unexpected manufacturing indices: %v", got)
	}
	if got := p.Indices(internal.Services); len(got) == 0 || got[0] != "Services PMI" {
		t.Fatalf("unexpected services indices: %v", got)
	}
	if got := len(p.CanonicalIndustries(internal.Manufacturing)); got != 18 {
		t.Fatalf("expected 18 manufacturing industries, got %d", got)
	}
	if got := p.HeadlineComponents(internal.Manufacturing); len(got) != 5 {
		t.Fatalf("expected 5 manufacturing components, got %v", got)
	}
	prompt := p.CorrectionPrompt(internal.Services)
	if strings.Contains(prompt, "{{indices}}") || !strings.Contains(prompt, "Business Activity") {
		t.Fatalf("prompt placeholders not expanded: %q", prompt)
	}
}

func TestLoadProviderOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.yaml")
	doc := `
reports:
  services:
    components: [Business Activity]
    indices:
      - name: Services PMI
      - name: Business Activity
        categories: [Up, Down]
    canonical_industries: [Mining]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadProvider(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"Up", "Down"}, p.IndexCategories(internal.Services, "business activity")); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
	if got := p.CanonicalIndustries(internal.Services); len(got) != 1 {
		t.Fatalf("overlay not applied: %v", got)
	}
	if got := p.CanonicalIndustries(internal.Manufacturing); len(got) != 18 {
		t.Fatalf("manufacturing defaults lost: %d", len(got))
	}
}

func TestParseProviderRejectsUnknownType(t *testing.T) {
	if _, err := ParseProvider([]byte("reports:\n  Retail: {}\n")); err == nil {
		t.Fatalf("expected error for unknown report type")
	}
}
