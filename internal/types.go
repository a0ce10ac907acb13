package internal

import (
	"sort"
	"strings"
)

type ReportType string

const (
	Manufacturing ReportType = "Manufacturing"
	Services      ReportType = "Services"
)

// ParseReportType accepts loose spellings ("manufacturing", "SERVICES ISM").
func ParseReportType(s string) (ReportType, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return Manufacturing, false
	case strings.Contains(v, "manufactur"):
		return Manufacturing, true
	case strings.Contains(v, "service"):
		return Services, true
	default:
		return Manufacturing, false
	}
}

// Headline returns the composite index name of the report type.
func (t ReportType) Headline() string {
	if t == Services {
		return "Services PMI"
	}
	return "Manufacturing PMI"
}

func (t ReportType) Other() ReportType {
	if t == Services {
		return Manufacturing
	}
	return Services
}

type Direction string

const (
	Growing     Direction = "Growing"
	Contracting Direction = "Contracting"
	Slowing     Direction = "Slowing"
	Faster      Direction = "Faster"
	TooHigh     Direction = "Too High"
	TooLow      Direction = "Too Low"
	Unknown     Direction = "Unknown"
)

var knownDirections = map[Direction]struct{}{
	Growing: {}, Contracting: {}, Slowing: {}, Faster: {}, TooHigh: {}, TooLow: {}, Unknown: {},
}

// Known reports whether d belongs to the closed vocabulary. Pass-through
// values produced from unmapped phrases are not known.
func (d Direction) Known() bool {
	_, ok := knownDirections[d]
	return ok
}

type IndexValue struct {
	IndexName   string    `json:"index_name"`
	Value       *float64  `json:"value"`
	Direction   Direction `json:"direction"`
	Synthesized bool      `json:"synthesized,omitempty"`
}

// Membership maps index -> category -> ordered unique industries.
type Membership map[string]map[string][]string

// Add appends industry under index/category unless an equal name
// (case-insensitive) is already present there.
func (m Membership) Add(index, category, industry string) bool {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return false
	}
	cats, ok := m[index]
	if !ok {
		cats = map[string][]string{}
		m[index] = cats
	}
	for _, existing := range cats[category] {
		if strings.EqualFold(existing, industry) {
			return false
		}
	}
	cats[category] = append(cats[category], industry)
	return true
}

// Ensure creates an empty category list so absent matches are still visible.
func (m Membership) Ensure(index, category string) {
	cats, ok := m[index]
	if !ok {
		cats = map[string][]string{}
		m[index] = cats
	}
	if _, ok := cats[category]; !ok {
		cats[category] = []string{}
	}
}

func (m Membership) Clone() Membership {
	out := make(Membership, len(m))
	for index, cats := range m {
		c := make(map[string][]string, len(cats))
		for cat, names := range cats {
			c[cat] = append([]string(nil), names...)
		}
		out[index] = c
	}
	return out
}

type MatchMethod string

const (
	MatchExact   MatchMethod = "EXACT"
	MatchVariant MatchMethod = "VARIANT"
	MatchOverlap MatchMethod = "OVERLAP"
	MatchNone    MatchMethod = "NONE"
)

// NameMatch records how one raw industry name was standardized.
type NameMatch struct {
	Raw        string      `json:"raw"`
	Canonical  string      `json:"canonical"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence"`
}

type Report struct {
	MonthYear      string                `json:"month_year"`
	ReportType     ReportType            `json:"report_type"`
	Indices        map[string]IndexValue `json:"indices"`
	Industries     Membership            `json:"industries"`
	IndexSummaries map[string]string     `json:"index_summaries"`
	TypeCorrected  bool                  `json:"type_corrected,omitempty"`
	Matches        []NameMatch           `json:"matches,omitempty"`
	Warnings       []string              `json:"warnings,omitempty"`
}

const UnknownMonthYear = "Unknown"

// NewReport returns the minimal valid record.
func NewReport(t ReportType) *Report {
	if t == "" {
		t = Manufacturing
	}
	return &Report{
		MonthYear:      UnknownMonthYear,
		ReportType:     t,
		Indices:        map[string]IndexValue{},
		Industries:     Membership{},
		IndexSummaries: map[string]string{},
	}
}

func (r *Report) Clone() *Report {
	out := *r
	out.Indices = make(map[string]IndexValue, len(r.Indices))
	for k, v := range r.Indices {
		if v.Value != nil {
			f := *v.Value
			v.Value = &f
		}
		out.Indices[k] = v
	}
	out.Industries = r.Industries.Clone()
	out.IndexSummaries = make(map[string]string, len(r.IndexSummaries))
	for k, v := range r.IndexSummaries {
		out.IndexSummaries[k] = v
	}
	out.Matches = append([]NameMatch(nil), r.Matches...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}

func (r *Report) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// RawIndex is an index entry before coercion. Value holds whatever the
// extractor or corrector produced: a string, a float64 or nil.
type RawIndex struct {
	Value     any    `json:"value"`
	Direction string `json:"direction"`
}

// Draft is the merged, unvalidated output of the extraction strategies.
type Draft struct {
	MonthYear      string                         `json:"month_year"`
	ReportType     string                         `json:"report_type"`
	Indices        map[string]RawIndex            `json:"indices"`
	Industries     map[string]map[string][]string `json:"industries"`
	IndexSummaries map[string]string              `json:"index_summaries"`
}

type FlatIndex struct {
	IndexName string
	Value     *float64
	Direction string
}

type FlatIndustry struct {
	IndexName string
	Category  string
	Industry  string
}

// FlatRecord is the shape handed to persistence.
type FlatRecord struct {
	MonthYear  string
	ReportType string
	Indices    []FlatIndex
	Industries []FlatIndustry
}

// Flatten orders rows by index name and, inside an index, by category then
// insertion order.
func (r *Report) Flatten() FlatRecord {
	out := FlatRecord{MonthYear: r.MonthYear, ReportType: string(r.ReportType)}

	names := make([]string, 0, len(r.Indices))
	for name := range r.Indices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := r.Indices[name]
		out.Indices = append(out.Indices, FlatIndex{IndexName: name, Value: v.Value, Direction: string(v.Direction)})
	}

	indexNames := make([]string, 0, len(r.Industries))
	for name := range r.Industries {
		indexNames = append(indexNames, name)
	}
	sort.Strings(indexNames)
	for _, index := range indexNames {
		cats := r.Industries[index]
		catNames := make([]string, 0, len(cats))
		for cat := range cats {
			catNames = append(catNames, cat)
		}
		sort.Strings(catNames)
		for _, cat := range catNames {
			for _, industry := range cats[cat] {
				out.Industries = append(out.Industries, FlatIndustry{IndexName: index, Category: cat, Industry: industry})
			}
		}
	}
	return out
}
