package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// categoryPhrases lists, per category label, the phrases that follow
// "reporting" in an industry sentence. {index} stands for the index name.
// Adding a category is a table change.
var categoryPhrases = map[string][]string{
	"growing": {
		"growth in {index}", "{index} growth", "an increase in {index}", "increased {index}",
		"higher {index}", "expansion", "growth", "an increase",
	},
	"declining": {
		"a decline in {index}", "a decrease in {index}", "contraction in {index}", "{index} contraction",
		"lower {index}", "decreased {index}", "a decline", "a decrease", "contraction",
	},
	"slower": {"slower {index}", "slower deliveries", "slower"},
	"faster": {"faster {index}", "faster deliveries", "faster"},
	"higher": {"higher {index}", "an increase in {index}", "higher", "an increase"},
	"lower":  {"lower {index}", "a decrease in {index}", "lower", "a decrease"},
	"too high": {
		"(?:their )?{index} (?:as|were|was|being) too high", "{index} too high",
		"sentiment that their inventories (?:are|were) too high", "too high",
	},
	"too low": {
		"(?:their )?{index} (?:as|were|was|being) too low", "{index} too low",
		"sentiment that their inventories (?:are|were) too low", "too low",
	},
	"increasing": {
		"paying increased prices", "paying higher prices", "increased prices", "higher prices", "price increases",
	},
	"decreasing": {
		"paying decreased prices", "paying lower prices", "decreased prices", "lower prices", "price decreases",
	},
}

// indexAliases lists the shorter wordings ISM uses for an index inside
// summary sentences ("reporting higher backlogs"). Keys are lower case.
var indexAliases = map[string][]string{
	"backlog of orders":      {"order backlogs?", "backlogs?"},
	"new export orders":      {"export orders"},
	"supplier deliveries":    {"deliveries"},
	"inventories":            {"inventory levels?", "inventory"},
	"customers' inventories": {"customer inventories"},
	"imports":                {"import volumes?"},
	"employment":             {"employment levels?", "headcount"},
}

// industrySentence captures the enumeration after "are:" or "is" in
// sentences like "The six industries reporting growth in new orders in
// January are: A; B; and C."
const industrySentence = `(?is)industr(?:y|ies)\b[^.:]{0,60}?\breport(?:ed|ing)\s+(?:%s)\b[^:.]{0,160}?\b(?:are|is)\s*:?\s*(.+?)\.(?:\s|$)`

// indexPhrase turns an index name into a regex fragment tolerant of
// typographic apostrophes and line breaks.
func indexPhrase(index string) string {
	s := regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(index)))
	s = strings.ReplaceAll(s, "'", `['’]?`)
	s = strings.ReplaceAll(s, " ", `\s+`)
	return s
}

// indexAlternation matches the index name or any of its aliases, longest
// first.
func indexAlternation(index string) string {
	alts := []string{indexPhrase(index)}
	aliases := append([]string(nil), indexAliases[strings.ToLower(strings.TrimSpace(index))]...)
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	for _, alias := range aliases {
		alts = append(alts, strings.ReplaceAll(alias, " ", `\s+`))
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return "(?:" + strings.Join(alts, "|") + ")"
}

func phraseRegex(phrase, index string) string {
	parts := strings.Split(phrase, "{index}")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(part, " ", `\s+`)
	}
	return strings.Join(parts, indexAlternation(index))
}

// BuildCategoryPattern compiles the sentence pattern for one (index,
// category) pair. Unlisted categories match on the category label itself.
func BuildCategoryPattern(index, category string) *regexp.Regexp {
	phrases, ok := categoryPhrases[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		phrases = []string{regexp.QuoteMeta(strings.ToLower(category)) + " {index}", regexp.QuoteMeta(strings.ToLower(category))}
	}
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		alts = append(alts, phraseRegex(p, index))
	}
	return regexp.MustCompile(fmt.Sprintf(industrySentence, strings.Join(alts, "|")))
}
