package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"ismparse/internal"
	"ismparse/internal/config"
	"ismparse/internal/util"
)

var errNoCanonicalList = errors.New("no canonical industry list")

type stage struct {
	name string
	run  func(r *internal.Report) error
}

// Pipeline turns a merged draft into a final report. Each stage works on a
// copy; a stage that fails or panics is skipped and the previous state kept.
type Pipeline struct {
	provider     config.Provider
	standardizer *Standardizer
	stages       []stage
}

func NewPipeline(provider config.Provider, standardizer *Standardizer) *Pipeline {
	if standardizer == nil {
		standardizer = NewStandardizer(provider)
	}
	p := &Pipeline{provider: provider, standardizer: standardizer}
	p.stages = []stage{
		{name: "consistency_repair", run: p.repairConsistency},
		{name: "standardize_industries", run: p.standardizeIndustries},
		{name: "infer_headline", run: p.inferHeadline},
		{name: "dedupe_categories", run: p.dedupeCategories},
	}
	return p
}

func (p *Pipeline) Run(draft internal.Draft, t internal.ReportType) (out *internal.Report) {
	current := internal.NewReport(t)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("pipeline.recovered")
			current.Warn(fmt.Sprintf("pipeline aborted: %v", rec))
			out = current
		}
	}()

	if coerced, err := protect(func() (*internal.Report, error) { return p.coerce(draft, t), nil }); err != nil {
		log.Warn().Err(err).Str("stage", "coerce").Msg("pipeline.stage_skipped")
		current.Warn(fmt.Sprintf("stage coerce skipped: %v", err))
	} else {
		current = coerced
	}

	for _, st := range p.stages {
		next := current.Clone()
		_, err := protect(func() (*internal.Report, error) { return next, st.run(next) })
		if err != nil {
			log.Warn().Err(err).Str("stage", st.name).Msg("pipeline.stage_skipped")
			current.Warn(fmt.Sprintf("stage %s skipped: %v", st.name, err))
			continue
		}
		current = next
	}
	return current
}

func protect(fn func() (*internal.Report, error)) (r *internal.Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// coerce builds a report from the draft. Unknown report-type strings fall
// back to t.
func (p *Pipeline) coerce(draft internal.Draft, t internal.ReportType) *internal.Report {
	rt := t
	if parsed, ok := internal.ParseReportType(draft.ReportType); ok {
		rt = parsed
	}
	r := internal.NewReport(rt)
	if my := strings.TrimSpace(draft.MonthYear); my != "" {
		r.MonthYear = my
	}

	for rawName, raw := range draft.Indices {
		name := p.canonicalIndexName(rawName)
		if name == "" {
			continue
		}
		parsed := util.ParseValue(raw.Value)
		if parsed.Warning != "" {
			log.Warn().Str("index", name).Str("reason", parsed.Warning).Msg("coerce.value_missing")
			r.Warn(fmt.Sprintf("index %s: %s", name, parsed.Warning))
		}
		r.Indices[name] = internal.IndexValue{
			IndexName: name,
			Value:     parsed.Value,
			Direction: NormalizeDirection(raw.Direction),
		}
	}

	for rawIndex, cats := range draft.Industries {
		index := p.canonicalIndexName(rawIndex)
		if index == "" {
			continue
		}
		for _, rawCat := range sortedKeys(cats) {
			cat := p.canonicalCategory(rt, index, rawCat)
			if cat == "" {
				continue
			}
			r.Industries.Ensure(index, cat)
			for _, n := range cats[rawCat] {
				r.Industries.Add(index, cat, util.CollapseSpaces(n))
			}
		}
	}

	for rawIndex, summary := range draft.IndexSummaries {
		index := p.canonicalIndexName(rawIndex)
		if index == "" || strings.TrimSpace(summary) == "" {
			continue
		}
		r.IndexSummaries[index] = strings.TrimSpace(summary)
	}
	return r
}

// canonicalIndexName maps loose spellings ("manufacturing pmi®") onto the
// configured name; unknown names are kept as written.
func (p *Pipeline) canonicalIndexName(raw string) string {
	cleaned := util.CollapseSpaces(strings.NewReplacer("®", "", "(R)", "").Replace(raw))
	key := util.NormalizeName(cleaned)
	if key == "" {
		return ""
	}
	for _, rt := range bothTypes {
		for _, name := range p.provider.Indices(rt) {
			if util.NormalizeName(name) == key {
				return name
			}
		}
	}
	return cleaned
}

// canonicalCategory maps a category label onto the configured spelling,
// first case-insensitively, then through the direction synonyms
// ("expansion" -> Growing, "higher" -> Increasing for Prices). Labels with no
// configured counterpart are kept as written.
func (p *Pipeline) canonicalCategory(t internal.ReportType, index, raw string) string {
	cat := util.CollapseSpaces(raw)
	if cat == "" {
		return ""
	}
	configured := p.provider.IndexCategories(t, index)
	for _, label := range configured {
		if strings.EqualFold(label, cat) {
			return label
		}
	}
	dir := NormalizeDirection(cat)
	if !dir.Known() || dir == internal.Unknown {
		return cat
	}
	for _, label := range configured {
		if NormalizeDirection(label) == dir {
			return label
		}
	}
	return cat
}

// repairConsistency trusts headline presence over the classifier and flips
// the report type at most once.
func (p *Pipeline) repairConsistency(r *internal.Report) error {
	if r.TypeCorrected {
		return nil
	}
	_, own := r.Indices[r.ReportType.Headline()]
	_, other := r.Indices[r.ReportType.Other().Headline()]
	if own || !other {
		return nil
	}
	from := r.ReportType
	r.ReportType = from.Other()
	r.TypeCorrected = true
	log.Warn().Str("from", string(from)).Str("to", string(r.ReportType)).Msg("pipeline.type_corrected")
	r.Warn(fmt.Sprintf("report type corrected from %s to %s", from, r.ReportType))
	return nil
}

func (p *Pipeline) standardizeIndustries(r *internal.Report) error {
	if len(r.Industries) == 0 {
		return nil
	}
	matcher, ok := p.standardizer.For(r.ReportType)
	if !ok {
		return fmt.Errorf("%w for %s", errNoCanonicalList, r.ReportType)
	}

	next := internal.Membership{}
	for _, index := range sortedKeys(r.Industries) {
		cats := r.Industries[index]
		for _, cat := range sortedKeys(cats) {
			next.Ensure(index, cat)
			names, matches := StandardizeList(matcher, cats[cat])
			for _, m := range matches {
				if m.Method == internal.MatchNone {
					log.Warn().Str("industry", m.Raw).Str("index", index).Msg("standardize.unmatched")
					r.Warn(fmt.Sprintf("industry %q not in canonical list", m.Raw))
				}
			}
			r.Matches = append(r.Matches, matches...)
			for _, n := range names {
				next.Add(index, cat, n)
			}
		}
	}
	r.Industries = next
	return nil
}

func (p *Pipeline) inferHeadline(r *internal.Report) error {
	headline := r.ReportType.Headline()
	if existing, ok := r.Indices[headline]; ok && existing.Value != nil {
		return nil
	}

	sum := 0.0
	n := 0
	for _, component := range p.provider.HeadlineComponents(r.ReportType) {
		if v, ok := r.Indices[component]; ok && v.Value != nil {
			sum += *v.Value
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := util.Round1(sum / float64(n))
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return fmt.Errorf("inferred %s is not finite", headline)
	}
	direction := internal.Contracting
	if mean >= 50 {
		direction = internal.Growing
	}
	r.Indices[headline] = internal.IndexValue{IndexName: headline, Value: &mean, Direction: direction, Synthesized: true}
	log.Info().Str("index", headline).Float64("value", mean).Int("components", n).Msg("pipeline.headline_inferred")
	return nil
}

// dedupeCategories keeps an industry only in the first category, scanning
// categories in their configured order.
func (p *Pipeline) dedupeCategories(r *internal.Report) error {
	for index, cats := range r.Industries {
		seen := map[string]string{}
		for _, cat := range p.categoryOrder(r.ReportType, index, cats) {
			kept := []string{}
			for _, name := range cats[cat] {
				key := normalizeKey(name)
				if first, dup := seen[key]; dup {
					log.Warn().Str("industry", name).Str("index", index).Str("kept_in", first).Str("removed_from", cat).Msg("pipeline.duplicate_removed")
					continue
				}
				seen[key] = cat
				kept = append(kept, name)
			}
			cats[cat] = kept
		}
	}
	return nil
}

func (p *Pipeline) categoryOrder(t internal.ReportType, index string, cats map[string][]string) []string {
	order := []string{}
	listed := map[string]struct{}{}
	for _, label := range p.provider.IndexCategories(t, index) {
		for _, cat := range sortedKeys(cats) {
			if _, done := listed[cat]; !done && strings.EqualFold(cat, label) {
				order = append(order, cat)
				listed[cat] = struct{}{}
			}
		}
	}
	for _, cat := range sortedKeys(cats) {
		if _, ok := listed[cat]; !ok {
			order = append(order, cat)
		}
	}
	return order
}

func normalizeKey(name string) string {
	return util.NormalizeName(name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
