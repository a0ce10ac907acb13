package pipeline

import (
	"sort"

	"github.com/rs/zerolog/log"

	"ismparse/internal"
	"ismparse/internal/config"
)

// Kind tags each extractor variant. The set is closed.
type Kind int

const (
	KindDate Kind = iota + 1
	KindTable
	KindIndustry
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindTable:
		return "table"
	case KindIndustry:
		return "industry"
	default:
		return "unknown"
	}
}

type SectionKind string

const (
	SectionDate      SectionKind = "date"
	SectionAtAGlance SectionKind = "at_a_glance"
	SectionIndustry  SectionKind = "industry"
)

type Meta struct {
	Kind        Kind
	Section     SectionKind
	ReportTypes []internal.ReportType
	Priority    int
}

func (m Meta) Applies(t internal.ReportType) bool {
	for _, rt := range m.ReportTypes {
		if rt == t {
			return true
		}
	}
	return false
}

type Input struct {
	Text       string
	DocRef     string
	ReportType internal.ReportType
	Ambiguous  bool
}

// Fragment is a partial record. Zero fields mean "nothing found".
type Fragment struct {
	MonthYear      string
	ReportType     internal.ReportType
	Indices        map[string]internal.RawIndex
	Industries     map[string]map[string][]string
	IndexSummaries map[string]string
}

func (f Fragment) Empty() bool {
	return f.MonthYear == "" && f.ReportType == "" && len(f.Indices) == 0 && len(f.Industries) == 0 && len(f.IndexSummaries) == 0
}

// Strategy extracts one kind of fragment. Implementations keep no per-call
// state and never fail; a miss is an empty fragment.
type Strategy interface {
	Meta() Meta
	Extract(in Input) Fragment
}

type Registry struct {
	strategies []Strategy
}

func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry holds the date, table and industry extractors for both
// report types.
func NewDefaultRegistry(provider config.Provider) *Registry {
	r := NewRegistry()
	r.Register(NewDateExtractor())
	r.Register(NewTableExtractor(provider))
	r.Register(NewIndustryExtractor(provider))
	return r
}

func (r *Registry) Register(s Strategy) {
	if s == nil {
		return
	}
	r.strategies = append(r.strategies, s)
}

// StrategiesFor filters by report type and, when given, section kind, then
// orders by priority descending. Equal priorities keep registration order.
func (r *Registry) StrategiesFor(t internal.ReportType, sections ...SectionKind) []Strategy {
	out := []Strategy{}
	for _, s := range r.strategies {
		meta := s.Meta()
		if !meta.Applies(t) {
			continue
		}
		if len(sections) > 0 && !containsSection(sections, meta.Section) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Meta().Priority > out[j].Meta().Priority })
	return out
}

func containsSection(sections []SectionKind, s SectionKind) bool {
	for _, candidate := range sections {
		if candidate == s {
			return true
		}
	}
	return false
}

// runStrategy turns a panicking extractor into an empty fragment.
func runStrategy(s Strategy, in Input) (frag Fragment) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Str("strategy", s.Meta().Kind.String()).Interface("panic", rec).Msg("strategy.recovered")
			frag = Fragment{}
		}
	}()
	return s.Extract(in)
}

// MergeFragments folds fragments given in priority order into a draft. The
// first known month wins and earlier fragments win on key conflicts.
func MergeFragments(t internal.ReportType, frags []Fragment) internal.Draft {
	draft := internal.Draft{
		ReportType:     string(t),
		Indices:        map[string]internal.RawIndex{},
		Industries:     map[string]map[string][]string{},
		IndexSummaries: map[string]string{},
	}
	typeSet := false
	for _, f := range frags {
		if draft.MonthYear == "" && f.MonthYear != "" && f.MonthYear != internal.UnknownMonthYear {
			draft.MonthYear = f.MonthYear
		}
		if !typeSet && f.ReportType != "" {
			draft.ReportType = string(f.ReportType)
			typeSet = true
		}
		for name, v := range f.Indices {
			if _, ok := draft.Indices[name]; !ok {
				draft.Indices[name] = v
			}
		}
		for index, cats := range f.Industries {
			existing, ok := draft.Industries[index]
			if !ok {
				existing = map[string][]string{}
				draft.Industries[index] = existing
			}
			for cat, names := range cats {
				if len(existing[cat]) == 0 {
					existing[cat] = append([]string{}, names...)
				}
			}
		}
		for index, summary := range f.IndexSummaries {
			if _, ok := draft.IndexSummaries[index]; !ok && summary != "" {
				draft.IndexSummaries[index] = summary
			}
		}
	}
	if draft.MonthYear == "" {
		draft.MonthYear = internal.UnknownMonthYear
	}
	return draft
}

var bothTypes = []internal.ReportType{internal.Manufacturing, internal.Services}
