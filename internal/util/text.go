package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reQuotes     = regexp.MustCompile("[\"`‘’“”]")
	reNonAllowed = regexp.MustCompile(`[^a-z0-9&'\s]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// stripAccents returns a fresh chain per call; a transform.Transformer keeps
// state between calls and must not be shared between goroutines.
func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeName produces the lookup form of an industry or index name:
// lower case, accents folded, quotes and punctuation dropped, single spaces.
func NormalizeName(input string) string {
	s := strings.ToLower(input)
	if folded, _, err := transform.String(stripAccents(), s); err == nil {
		s = folded
	}
	s = reQuotes.ReplaceAllString(s, "'")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "'", "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseSpaces trims and joins whitespace runs, keeping case.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// TitleCase capitalizes every word using English casing rules.
func TitleCase(input string) string {
	return cases.Title(language.English).String(CollapseSpaces(input))
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func FloatPtr(v float64) *float64 { return &v }
