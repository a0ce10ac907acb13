package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"ismparse/internal"
	"ismparse/internal/config"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	blob, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(blob)
}

func value(t *testing.T, r *internal.Report, index string) float64 {
	t.Helper()
	v, ok := r.Indices[index]
	if !ok || v.Value == nil {
		t.Fatalf("index %s missing or without value: %+v", index, r.Indices)
	}
	return *v.Value
}

// bareProvider hides the canonical industry lists of the default layout.
type bareProvider struct {
	config.Provider
}

func (bareProvider) CanonicalIndustries(internal.ReportType) []string { return nil }

type panicMatcher struct{}

func (panicMatcher) Match(string) internal.NameMatch { panic("matcher exploded") }
