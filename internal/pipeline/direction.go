package pipeline

import (
	"strings"

	"ismparse/internal"
	"ismparse/internal/util"
)

var directionSynonyms = map[string]internal.Direction{
	"growing":     internal.Growing,
	"growth":      internal.Growing,
	"grew":        internal.Growing,
	"expansion":   internal.Growing,
	"expanding":   internal.Growing,
	"increasing":  internal.Growing,
	"increase":    internal.Growing,
	"higher":      internal.Growing,
	"rising":      internal.Growing,
	"contracting": internal.Contracting,
	"contraction": internal.Contracting,
	"decline":     internal.Contracting,
	"declining":   internal.Contracting,
	"decreasing":  internal.Contracting,
	"decrease":    internal.Contracting,
	"lower":       internal.Contracting,
	"falling":     internal.Contracting,
	"shrinking":   internal.Contracting,
	"slowing":     internal.Slowing,
	"slower":      internal.Slowing,
	"faster":      internal.Faster,
	"too high":    internal.TooHigh,
	"too low":     internal.TooLow,
	"unknown":     internal.Unknown,
	"n/a":         internal.Unknown,
	"":            internal.Unknown,
}

// NormalizeDirection maps a free-text direction phrase to the closed
// vocabulary. Unmapped phrases are title-cased and passed through; the
// result is stable under repeated application.
func NormalizeDirection(input string) internal.Direction {
	s := strings.Trim(util.CollapseSpaces(input), " .,;:")
	if d, ok := directionSynonyms[strings.ToLower(s)]; ok {
		return d
	}
	return internal.Direction(util.TitleCase(s))
}
