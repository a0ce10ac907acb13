package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ismparse/internal"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Provider exposes the read-only report layout queried by report type.
type Provider interface {
	Indices(t internal.ReportType) []string
	IndexCategories(t internal.ReportType, index string) []string
	CanonicalIndustries(t internal.ReportType) []string
	HeadlineComponents(t internal.ReportType) []string
	ExtractionPrompt(t internal.ReportType) string
	CorrectionPrompt(t internal.ReportType) string
}

type IndexSpec struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories,omitempty"`
}

type ReportSpec struct {
	Headline            string      `yaml:"headline"`
	Components          []string    `yaml:"components"`
	Indices             []IndexSpec `yaml:"indices"`
	CanonicalIndustries []string    `yaml:"canonical_industries"`
	ExtractionPrompt    string      `yaml:"extraction_prompt"`
	CorrectionPrompt    string      `yaml:"correction_prompt"`
}

type document struct {
	Reports map[string]ReportSpec `yaml:"reports"`
}

// YAMLProvider is a Provider backed by a YAML document. It is never mutated
// after construction, so one value can be shared between goroutines.
type YAMLProvider struct {
	reports map[internal.ReportType]ReportSpec
}

// DefaultProvider returns the embedded layout. It panics only if the
// embedded document is broken, which is a build defect.
func DefaultProvider() *YAMLProvider {
	p, err := ParseProvider(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return p
}

// LoadProvider reads path and overlays its report types onto the embedded
// defaults. An empty path yields the defaults.
func LoadProvider(path string) (*YAMLProvider, error) {
	base := DefaultProvider()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report config: %w", err)
	}
	overlay, err := ParseProvider(raw)
	if err != nil {
		return nil, fmt.Errorf("parse report config %s: %w", path, err)
	}
	for t, spec := range overlay.reports {
		base.reports[t] = spec
	}
	return base, nil
}

func ParseProvider(raw []byte) (*YAMLProvider, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	p := &YAMLProvider{reports: map[internal.ReportType]ReportSpec{}}
	for key, spec := range doc.Reports {
		t, ok := internal.ParseReportType(key)
		if !ok {
			return nil, fmt.Errorf("unknown report type %q", key)
		}
		if spec.Headline == "" {
			spec.Headline = t.Headline()
		}
		p.reports[t] = spec
	}
	return p, nil
}

func (p *YAMLProvider) Indices(t internal.ReportType) []string {
	spec := p.reports[t]
	out := make([]string, 0, len(spec.Indices))
	for _, idx := range spec.Indices {
		out = append(out, idx.Name)
	}
	return out
}

func (p *YAMLProvider) IndexCategories(t internal.ReportType, index string) []string {
	for _, idx := range p.reports[t].Indices {
		if strings.EqualFold(idx.Name, index) && len(idx.Categories) > 0 {
			return append([]string(nil), idx.Categories...)
		}
	}
	return DefaultCategories(index)
}

func (p *YAMLProvider) CanonicalIndustries(t internal.ReportType) []string {
	return append([]string(nil), p.reports[t].CanonicalIndustries...)
}

func (p *YAMLProvider) HeadlineComponents(t internal.ReportType) []string {
	return append([]string(nil), p.reports[t].Components...)
}

func (p *YAMLProvider) ExtractionPrompt(t internal.ReportType) string {
	return p.expand(t, p.reports[t].ExtractionPrompt)
}

func (p *YAMLProvider) CorrectionPrompt(t internal.ReportType) string {
	return p.expand(t, p.reports[t].CorrectionPrompt)
}

func (p *YAMLProvider) expand(t internal.ReportType, prompt string) string {
	return strings.ReplaceAll(prompt, "{{indices}}", strings.Join(p.Indices(t), ", "))
}

// DefaultCategories picks category labels from the index name when the
// layout does not list them.
func DefaultCategories(index string) []string {
	name := strings.ToLower(index)
	switch {
	case strings.Contains(name, "supplier deliveries"):
		return []string{"Slower", "Faster"}
	case strings.Contains(name, "customers") || strings.Contains(name, "inventory sentiment"):
		return []string{"Too High", "Too Low"}
	case strings.Contains(name, "inventories"):
		return []string{"Higher", "Lower"}
	case strings.Contains(name, "prices"):
		return []string{"Increasing", "Decreasing"}
	default:
		return []string{"Growing", "Declining"}
	}
}
