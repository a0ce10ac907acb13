package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"ismparse/internal"
	"ismparse/internal/config"
)

const (
	glanceWindow   = 4000
	directionWords = `too\s+high|too\s+low|growing|growth|expanding|expansion|contracting|contraction|declining|decline|slowing|slower|faster|increasing|decreasing`
)

var reSectionBoundary = regexp.MustCompile(`(?i)WHAT\s+RESPONDENTS\s+ARE\s+SAYING|COMMODITIES\s+REPORTED|(?:MANUFACTURING\s+|SERVICES\s+)?INDEX\s+SUMMARIES|BUYING\s+POLICY|ABOUT\s+THIS\s+REPORT`)

type indexPatterns struct {
	name     string
	mask     *regexp.Regexp
	sentence *regexp.Regexp
	row      *regexp.Regexp
}

// TableExtractor reads index values and directions from the "At a Glance"
// section.
type TableExtractor struct {
	provider config.Provider
	glance   map[internal.ReportType]*regexp.Regexp
	patterns map[internal.ReportType][]indexPatterns
}

func NewTableExtractor(provider config.Provider) *TableExtractor {
	t := &TableExtractor{
		provider: provider,
		glance:   map[internal.ReportType]*regexp.Regexp{},
		patterns: map[internal.ReportType][]indexPatterns{},
	}
	for _, rt := range bothTypes {
		t.glance[rt] = regexp.MustCompile(`(?i)` + strings.ToUpper(string(rt)) + `\s+AT\s+A\s+GLANCE`)
		t.patterns[rt] = compileIndexPatterns(provider.Indices(rt))
	}
	return t
}

// compileIndexPatterns orders names longest first so masking a long name
// hides the shorter names it contains.
func compileIndexPatterns(names []string) []indexPatterns {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	out := make([]indexPatterns, 0, len(sorted))
	for _, name := range sorted {
		phrase := indexPhrase(name)
		out = append(out, indexPatterns{
			name: name,
			mask: regexp.MustCompile(`(?i)\b` + phrase + `\b`),
			sentence: regexp.MustCompile(`(?i)\b` + phrase + `\s*(?:®|\(R\))?(?:\s+Index)?\s*(?:\([^)]{0,20}\)\s*)?(?:at|was|registered|of|is)\s+(-?\d+(?:\.\d+)?)\s*(?:%|percent)?` +
				`(?:[^\n]{0,80}?\b(` + directionWords + `)\b)?`),
			row: regexp.MustCompile(`(?im)^\s*` + phrase + `\s*(?:®|\(R\))?(?:\s+Index)?\s+(-?\d+(?:\.\d+)?)\s+-?\d+(?:\.\d+)?\s+[+-]?\d+(?:\.\d+)?\s+(` + directionWords + `)\b`),
		})
	}
	return out
}

func (t *TableExtractor) Meta() Meta {
	return Meta{Kind: KindTable, Section: SectionAtAGlance, ReportTypes: bothTypes, Priority: 8}
}

func (t *TableExtractor) Extract(in Input) Fragment {
	rt := in.ReportType
	if rt == "" {
		rt = internal.Manufacturing
	}
	indices := t.extractFor(in.Text, rt)
	if in.Ambiguous {
		other := t.extractFor(in.Text, rt.Other())
		if len(other) > len(indices) {
			log.Info().Str("from", string(rt)).Str("to", string(rt.Other())).Int("indices", len(other)).Msg("table.type_switched")
			return Fragment{ReportType: rt.Other(), Indices: other}
		}
	}
	if len(indices) == 0 {
		return Fragment{}
	}
	return Fragment{Indices: indices}
}

func (t *TableExtractor) extractFor(text string, rt internal.ReportType) map[string]internal.RawIndex {
	section, bounded := t.glanceSection(text, rt)
	found := matchIndices(section, t.patterns[rt])
	if len(found) == 0 && bounded {
		found = matchIndices(text, t.patterns[rt])
	}
	for _, name := range t.provider.Indices(rt) {
		if _, ok := found[name]; !ok {
			log.Debug().Str("index", name).Str("type", string(rt)).Msg("table.index_missing")
		}
	}
	return found
}

// glanceSection bounds "<TYPE> AT A GLANCE" by the next section header or a
// fixed window. Without the header the whole text is used.
func (t *TableExtractor) glanceSection(text string, rt internal.ReportType) (string, bool) {
	loc := t.glance[rt].FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	rest := text[loc[1]:]
	end := len(rest)
	if b := reSectionBoundary.FindStringIndex(rest); b != nil {
		end = b[0]
	} else if end > glanceWindow {
		end = glanceWindow
	}
	return rest[:end], true
}

func matchIndices(text string, patterns []indexPatterns) map[string]internal.RawIndex {
	out := map[string]internal.RawIndex{}
	work := text
	for _, p := range patterns {
		if m := p.sentence.FindStringSubmatch(work); m != nil {
			out[p.name] = internal.RawIndex{Value: m[1], Direction: m[2]}
		} else if m := p.row.FindStringSubmatch(work); m != nil {
			out[p.name] = internal.RawIndex{Value: m[1], Direction: m[2]}
		}
		work = p.mask.ReplaceAllStringFunc(work, func(s string) string { return strings.Repeat("#", len(s)) })
	}
	return out
}
