package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"ismparse/internal"
	"ismparse/internal/config"
	"ismparse/internal/util"
)

type categoryPattern struct {
	category string
	re       *regexp.Regexp
}

type indexLayout struct {
	name       string
	header     *regexp.Regexp
	categories []categoryPattern
}

// IndustryExtractor splits the index summaries section into per-index
// blocks and pulls the industry enumerations out of each block.
type IndustryExtractor struct {
	layouts map[internal.ReportType][]indexLayout
}

var reSummariesAnchor = regexp.MustCompile(`(?i)(?:MANUFACTURING\s+|SERVICES\s+)?INDEX\s+SUMMARIES`)

var reSummaryEnd = regexp.MustCompile(`(?i)WHAT\s+RESPONDENTS\s+ARE\s+SAYING|COMMODITIES\s+REPORTED|BUYING\s+POLICY|ABOUT\s+THIS\s+REPORT`)

func NewIndustryExtractor(provider config.Provider) *IndustryExtractor {
	e := &IndustryExtractor{layouts: map[internal.ReportType][]indexLayout{}}
	for _, rt := range bothTypes {
		for _, name := range provider.Indices(rt) {
			layout := indexLayout{
				name:   name,
				header: regexp.MustCompile(`(?im)^\s*` + indexPhrase(name) + `\s*(?:®|\(R\))?(?:\s+Index)?\s*$`),
			}
			for _, cat := range provider.IndexCategories(rt, name) {
				layout.categories = append(layout.categories, categoryPattern{category: cat, re: BuildCategoryPattern(name, cat)})
			}
			e.layouts[rt] = append(e.layouts[rt], layout)
		}
	}
	return e
}

func (e *IndustryExtractor) Meta() Meta {
	return Meta{Kind: KindIndustry, Section: SectionIndustry, ReportTypes: bothTypes, Priority: 7}
}

func (e *IndustryExtractor) Extract(in Input) Fragment {
	rt := in.ReportType
	if rt == "" {
		rt = internal.Manufacturing
	}
	layouts := e.layouts[rt]
	if len(layouts) == 0 || strings.TrimSpace(in.Text) == "" {
		return Fragment{}
	}

	blocks, firstHeader := summaryBlocks(in.Text, layouts)
	headline := rt.Headline()
	// The headline industry lists usually sit in the narrative before the
	// per-index summaries.
	lead := strings.TrimSpace(in.Text[:firstHeader])

	frag := Fragment{
		Industries:     map[string]map[string][]string{},
		IndexSummaries: map[string]string{},
	}
	for _, layout := range layouts {
		block, ok := blocks[layout.name]
		if ok {
			frag.IndexSummaries[layout.name] = util.CollapseSpaces(block)
		}
		cats, found := matchCategories(block, layout.categories)
		if layout.name == headline && !found && lead != "" {
			cats, found = matchCategories(lead, layout.categories)
			ok = ok || found
		}
		if ok {
			frag.Industries[layout.name] = cats
		}
	}
	return frag
}

func matchCategories(block string, patterns []categoryPattern) (map[string][]string, bool) {
	cats := map[string][]string{}
	found := false
	for _, cp := range patterns {
		cats[cp.category] = []string{}
		if block == "" {
			continue
		}
		if m := cp.re.FindStringSubmatch(block); m != nil {
			if names := ParseIndustryList(m[1]); len(names) > 0 {
				cats[cp.category] = names
				found = true
			}
		}
	}
	return cats, found
}

type headerHit struct {
	name       string
	start, end int
}

// summaryBlocks returns each index's narrative, bounded by the next index
// header line or the end of the summaries section, and the offset where the
// first header starts.
func summaryBlocks(text string, layouts []indexLayout) (map[string]string, int) {
	from := 0
	if loc := reSummariesAnchor.FindStringIndex(text); loc != nil {
		from = loc[1]
	}
	region := text[from:]
	limit := len(region)
	if loc := reSummaryEnd.FindStringIndex(region); loc != nil {
		limit = loc[0]
	}
	region = region[:limit]

	hits := []headerHit{}
	for _, layout := range layouts {
		if loc := layout.header.FindStringIndex(region); loc != nil {
			hits = append(hits, headerHit{name: layout.name, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	blocks := map[string]string{}
	for i, h := range hits {
		end := len(region)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		if block := strings.TrimSpace(region[h.end:end]); block != "" {
			blocks[h.name] = block
		}
	}

	first := len(text)
	if len(hits) > 0 {
		first = from + hits[0].start
	} else if from > 0 {
		first = from
	}
	return blocks, first
}
