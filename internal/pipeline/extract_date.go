package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"ismparse/internal"
)

const (
	monthToken     = `(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?`
	yearToken      = `((?:19|20)\d{2})`
	headerAreaSize = 500
)

var (
	reMonthYear = regexp.MustCompile(`(?i)\b` + monthToken + `,?\s+` + yearToken + `\b`)

	// Tried in order; each captures month then year.
	datePatterns = []struct {
		name       string
		re         *regexp.Regexp
		headerOnly bool
	}{
		{
			name: "report_keyword",
			re:   regexp.MustCompile(`(?i)\b` + monthToken + `,?\s+` + yearToken + `\s+(?:ISM\s*®?\s+)?(?:Manufacturing|Services|Report\s+On\s+Business)\b`),
		},
		{
			name: "keyword_report",
			re:   regexp.MustCompile(`(?i)\b(?:Manufacturing|Services)\s+(?:PMI\s*®?\s+)?(?:Report\s+On\s+Business\s*®?\s+)?(?:for\s+)?` + monthToken + `,?\s+` + yearToken + `\b`),
		},
		{
			name: "at_a_glance",
			re:   regexp.MustCompile(`(?is)AT\s+A\s+GLANCE.{0,40}?\b` + monthToken + `,?\s+` + yearToken + `\b`),
		},
		{
			name:       "header",
			re:         reMonthYear,
			headerOnly: true,
		},
	}

	monthNames = map[string]string{
		"jan": "January", "feb": "February", "mar": "March", "apr": "April",
		"may": "May", "jun": "June", "jul": "July", "aug": "August",
		"sep": "September", "oct": "October", "nov": "November", "dec": "December",
	}
)

// DateExtractor finds the report month. It falls back to the most frequent
// month-year in the text, then to "Unknown".
type DateExtractor struct{}

func NewDateExtractor() DateExtractor { return DateExtractor{} }

func (DateExtractor) Meta() Meta {
	return Meta{Kind: KindDate, Section: SectionDate, ReportTypes: bothTypes, Priority: 9}
}

func (DateExtractor) Extract(in Input) Fragment {
	return Fragment{MonthYear: ExtractMonthYear(in.Text)}
}

func ExtractMonthYear(text string) string {
	if strings.TrimSpace(text) == "" {
		return internal.UnknownMonthYear
	}
	header := text
	if len(header) > headerAreaSize {
		header = header[:headerAreaSize]
	}
	for _, p := range datePatterns {
		haystack := text
		if p.headerOnly {
			haystack = header
		}
		if m := p.re.FindStringSubmatch(haystack); m != nil {
			return formatMonthYear(m[1], m[2])
		}
	}
	return mostFrequentMonthYear(text)
}

func mostFrequentMonthYear(text string) string {
	counts := map[string]int{}
	best := ""
	for _, m := range reMonthYear.FindAllStringSubmatch(text, -1) {
		key := formatMonthYear(m[1], m[2])
		counts[key]++
		if best == "" || counts[key] > counts[best] {
			best = key
		}
	}
	if best == "" {
		return internal.UnknownMonthYear
	}
	return best
}

func formatMonthYear(month, year string) string {
	key := strings.ToLower(month)
	if len(key) > 3 {
		key = key[:3]
	}
	name, ok := monthNames[key]
	if !ok {
		return internal.UnknownMonthYear
	}
	return fmt.Sprintf("%s %s", name, year)
}
