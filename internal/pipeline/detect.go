package pipeline

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"ismparse/internal"
	"ismparse/internal/config"
)

const (
	keywordWeight    = 0.5
	structuralWeight = 0.3
	industryWeight   = 0.2

	DefaultAmbiguityMargin = 10.0
)

type weightedPhrase struct {
	phrase string
	weight float64
}

var manufacturingKeywords = []weightedPhrase{
	{"MANUFACTURING PMI", 10},
	{"MANUFACTURING AT A GLANCE", 5},
	{"MANUFACTURING ISM", 5},
	{"MANUFACTURING SECTOR", 3},
	{"CUSTOMERS' INVENTORIES", 4},
	{"FABRICATED METAL", 3},
	{"PRODUCTION", 2},
	{"MANUFACTURING", 1},
}

var servicesKeywords = []weightedPhrase{
	{"SERVICES PMI", 10},
	{"SERVICES AT A GLANCE", 5},
	{"SERVICES ISM", 5},
	{"SERVICES SECTOR", 3},
	{"BUSINESS ACTIVITY", 4},
	{"INVENTORY SENTIMENT", 4},
	{"ACCOMMODATION & FOOD SERVICES", 3},
	{"SERVICES", 1},
}

var manufacturingAnchors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)MANUFACTURING\s+AT\s+A\s+GLANCE`),
	regexp.MustCompile(`(?i)MANUFACTURING\s+INDEX\s+SUMMARIES`),
	regexp.MustCompile(`(?im)^\s*Production(?:\s+Index)?\s*$`),
	regexp.MustCompile(`(?i)Customers'\s+Inventories`),
	regexp.MustCompile(`(?i)Manufacturing\s+PMI®?\s+(?:at|was|registered)`),
}

var servicesAnchors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SERVICES\s+AT\s+A\s+GLANCE`),
	regexp.MustCompile(`(?i)SERVICES\s+INDEX\s+SUMMARIES`),
	regexp.MustCompile(`(?im)^\s*Business\s+Activity(?:\s+Index)?\s*$`),
	regexp.MustCompile(`(?i)Inventory\s+Sentiment`),
	regexp.MustCompile(`(?i)Services\s+PMI®?\s+(?:at|was|registered)`),
}

// SignalScore is one signal's split between the two report types. The two
// fields always sum to 100.
type SignalScore struct {
	Manufacturing float64
	Services      float64
}

type Classification struct {
	ReportType    internal.ReportType
	Keyword       SignalScore
	Structural    SignalScore
	Industry      SignalScore
	Manufacturing float64
	Services      float64
	Ambiguous     bool
}

// Classifier decides Manufacturing vs Services from keyword, structural and
// industry-mention evidence. It holds only read-only data.
type Classifier struct {
	Margin float64

	manufacturingSectors []string
	servicesSectors      []string
}

func NewClassifier(provider config.Provider, margin float64) *Classifier {
	if margin <= 0 {
		margin = DefaultAmbiguityMargin
	}
	mfg := upperAll(provider.CanonicalIndustries(internal.Manufacturing))
	svc := upperAll(provider.CanonicalIndustries(internal.Services))
	return &Classifier{
		Margin:               margin,
		manufacturingSectors: exclusive(mfg, svc),
		servicesSectors:      exclusive(svc, mfg),
	}
}

func (c *Classifier) Classify(text string) internal.ReportType {
	return c.Score(text).ReportType
}

func (c *Classifier) Score(text string) Classification {
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("classifier.empty_text")
		even := SignalScore{Manufacturing: 50, Services: 50}
		return Classification{
			ReportType: internal.Manufacturing, Keyword: even, Structural: even, Industry: even,
			Manufacturing: 50, Services: 50, Ambiguous: true,
		}
	}

	upper := strings.ToUpper(strings.ReplaceAll(text, "’", "'"))
	out := Classification{
		Keyword:    keywordScore(upper),
		Structural: structuralScore(text),
		Industry:   c.industryScore(upper),
	}
	out.Manufacturing = keywordWeight*out.Keyword.Manufacturing + structuralWeight*out.Structural.Manufacturing + industryWeight*out.Industry.Manufacturing
	out.Services = keywordWeight*out.Keyword.Services + structuralWeight*out.Structural.Services + industryWeight*out.Industry.Services

	out.ReportType = internal.Manufacturing
	if out.Services > out.Manufacturing {
		out.ReportType = internal.Services
	}
	margin := out.Manufacturing - out.Services
	if margin < 0 {
		margin = -margin
	}
	out.Ambiguous = margin < c.Margin
	return out
}

func keywordScore(upper string) SignalScore {
	count := func(lexicon []weightedPhrase) float64 {
		total := 0.0
		for _, kw := range lexicon {
			total += float64(strings.Count(upper, kw.phrase)) * kw.weight
		}
		return total
	}
	return split(count(manufacturingKeywords), count(servicesKeywords))
}

func structuralScore(text string) SignalScore {
	text = strings.ReplaceAll(text, "’", "'")
	fraction := func(anchors []*regexp.Regexp) float64 {
		hits := 0
		for _, re := range anchors {
			if re.MatchString(text) {
				hits++
			}
		}
		return float64(hits) / float64(len(anchors))
	}
	return split(fraction(manufacturingAnchors), fraction(servicesAnchors))
}

func (c *Classifier) industryScore(upper string) SignalScore {
	count := func(sectors []string) float64 {
		total := 0
		for _, s := range sectors {
			total += strings.Count(upper, s)
		}
		return float64(total)
	}
	return split(count(c.manufacturingSectors), count(c.servicesSectors))
}

func split(mfg, svc float64) SignalScore {
	if mfg+svc <= 0 {
		return SignalScore{Manufacturing: 50, Services: 50}
	}
	return SignalScore{Manufacturing: 100 * mfg / (mfg + svc), Services: 100 * svc / (mfg + svc)}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

func exclusive(own, other []string) []string {
	skip := map[string]struct{}{}
	for _, s := range other {
		skip[s] = struct{}{}
	}
	out := []string{}
	for _, s := range own {
		if _, shared := skip[s]; !shared && s != "" {
			out = append(out, s)
		}
	}
	return out
}
