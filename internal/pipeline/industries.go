package pipeline

import (
	"regexp"
	"strings"

	"ismparse/internal/util"
)

var (
	reListFraming   = regexp.MustCompile(`(?i)\b(?:in the following order|listed in order|in order)\b\s*:?|\b(?:are|is)\s*:`)
	reFootnote      = regexp.MustCompile(`\(\s*\d+\s*\)`)
	reLeadingNoise  = regexp.MustCompile(`(?i)^(?:[-–—•*,:]+\s*|(?:and|or)\s+|(?:the|a|an)\s+)+`)
	reTrailingNoise = regexp.MustCompile(`[\s*.]+$`)
	reFinalAnd      = regexp.MustCompile(`(?i)\s+and\s+`)
)

var listArtifacts = map[string]struct{}{
	"none":           {},
	"n/a":            {},
	"not applicable": {},
	"no industries":  {},
	"no industry":    {},
	"none reported":  {},
	"industries":     {},
	"the following":  {},
	"etc":            {},
	"and":            {},
}

// ParseIndustryList splits an enumeration like "are: A; B; and C." into
// cleaned, case-insensitively unique names in first-seen order.
func ParseIndustryList(span string) []string {
	s := util.CollapseSpaces(span)
	s = reListFraming.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = reLeadingNoise.ReplaceAllString(s, "")

	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}

	parts := strings.Split(s, sep)
	// "A, B and C": the last comma item still holds the final two names.
	if sep == "," && len(parts) > 1 {
		last := parts[len(parts)-1]
		parts = append(parts[:len(parts)-1], reFinalAnd.Split(last, 2)...)
	}

	seen := map[string]struct{}{}
	out := []string{}
	for _, part := range parts {
		item := cleanIndustryItem(part)
		if len([]rune(item)) < 3 {
			continue
		}
		key := strings.ToLower(item)
		if _, artifact := listArtifacts[key]; artifact {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func cleanIndustryItem(part string) string {
	item := reFootnote.ReplaceAllString(part, " ")
	item = util.CollapseSpaces(item)
	item = reLeadingNoise.ReplaceAllString(item, "")
	item = reTrailingNoise.ReplaceAllString(item, "")
	return util.CollapseSpaces(item)
}
