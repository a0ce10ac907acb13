package pipeline

import (
	"ismparse/internal"
	"ismparse/internal/catalog"
	"ismparse/internal/config"
)

// IndustryMatcher standardizes one raw industry name. The returned
// confidence lets callers swap in a different matching scheme without
// changing the pipeline.
type IndustryMatcher interface {
	Match(raw string) internal.NameMatch
}

// Standardizer keeps one canonical index per report type.
type Standardizer struct {
	byType map[internal.ReportType]IndustryMatcher
}

func NewStandardizer(provider config.Provider) *Standardizer {
	s := &Standardizer{byType: map[internal.ReportType]IndustryMatcher{}}
	for _, rt := range bothTypes {
		canonical := provider.CanonicalIndustries(rt)
		if len(canonical) == 0 {
			continue
		}
		s.byType[rt] = catalog.BuildIndex(canonical)
	}
	return s
}

// WithMatcher replaces the matcher used for one report type.
func (s *Standardizer) WithMatcher(t internal.ReportType, m IndustryMatcher) *Standardizer {
	s.byType[t] = m
	return s
}

func (s *Standardizer) For(t internal.ReportType) (IndustryMatcher, bool) {
	m, ok := s.byType[t]
	return m, ok && m != nil
}

// StandardizeList maps every name to its canonical form and drops
// duplicates, keeping the first occurrence.
func StandardizeList(m IndustryMatcher, names []string) ([]string, []internal.NameMatch) {
	out := []string{}
	matches := make([]internal.NameMatch, 0, len(names))
	seen := map[string]struct{}{}
	for _, raw := range names {
		match := m.Match(raw)
		matches = append(matches, match)
		if match.Canonical == "" {
			continue
		}
		key := normalizeKey(match.Canonical)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, match.Canonical)
	}
	return out, matches
}
