package catalog

import (
	"strings"

	"ismparse/internal"
	"ismparse/internal/util"
)

var productSuffixes = []string{
	" & related support activities",
	" & related products",
	" & allied products",
	" products",
}

var insignificantWords = map[string]struct{}{
	"the": {}, "and": {}, "&": {}, "of": {}, "a": {}, "an": {},
}

// Index is the lookup structure over one canonical industry list.
type Index struct {
	Canonical         []string
	ByKey             map[string]string
	ByVariant         map[string]string
	NormalizedByName  map[string]string
	ambiguousVariants map[string]struct{}
}

func BuildIndex(canonical []string) *Index {
	idx := &Index{
		Canonical:         append([]string(nil), canonical...),
		ByKey:             map[string]string{},
		ByVariant:         map[string]string{},
		NormalizedByName:  map[string]string{},
		ambiguousVariants: map[string]struct{}{},
	}

	for _, name := range canonical {
		key := util.NormalizeName(name)
		if key == "" {
			continue
		}
		idx.ByKey[key] = name
		idx.NormalizedByName[name] = key
	}

	for _, name := range canonical {
		key := idx.NormalizedByName[name]
		if key == "" {
			continue
		}
		for _, v := range variantKeys(key) {
			idx.addVariant(v, name)
		}
		if word := firstSignificantWord(key); word != "" {
			idx.addVariant(word, name)
		}
	}

	return idx
}

func (idx *Index) addVariant(key, name string) {
	if key == "" {
		return
	}
	if _, ok := idx.ByKey[key]; ok {
		return
	}
	if _, bad := idx.ambiguousVariants[key]; bad {
		return
	}
	if existing, ok := idx.ByVariant[key]; ok && existing != name {
		delete(idx.ByVariant, key)
		idx.ambiguousVariants[key] = struct{}{}
		return
	}
	idx.ByVariant[key] = name
}

// Match standardizes one raw industry name: exact key, then generated
// variants, then the longest substring containment. Unmatched names come
// back cleaned with MatchNone.
func (idx *Index) Match(raw string) internal.NameMatch {
	cleaned := util.CollapseSpaces(raw)
	key := util.NormalizeName(raw)
	result := internal.NameMatch{Raw: raw, Canonical: cleaned, Method: internal.MatchNone}
	if key == "" {
		return result
	}

	if name, ok := idx.ByKey[key]; ok {
		result.Canonical = name
		result.Method = internal.MatchExact
		result.Confidence = 1
		return result
	}

	candidates := append([]string{key}, variantKeys(key)...)
	for _, c := range candidates {
		if name, ok := idx.ByKey[c]; ok {
			return idx.scored(result, name, key, internal.MatchVariant)
		}
		if name, ok := idx.ByVariant[c]; ok {
			return idx.scored(result, name, key, internal.MatchVariant)
		}
	}
	if word := firstSignificantWord(key); word != "" {
		if name, ok := idx.ByVariant[word]; ok {
			return idx.scored(result, name, key, internal.MatchVariant)
		}
	}

	if name := idx.longestContainment(key); name != "" {
		return idx.scored(result, name, key, internal.MatchOverlap)
	}
	return result
}

func (idx *Index) scored(result internal.NameMatch, name, key string, method internal.MatchMethod) internal.NameMatch {
	result.Canonical = name
	result.Method = method
	result.Confidence = util.DiceCoefficient(key, idx.NormalizedByName[name])
	return result
}

// longestContainment picks the canonical name sharing the longest contained
// string with key in either direction. Keys under four characters never
// match this way.
func (idx *Index) longestContainment(key string) string {
	if len(key) < 4 {
		return ""
	}
	best := ""
	bestLen := 0
	for _, name := range idx.Canonical {
		norm := idx.NormalizedByName[name]
		if norm == "" {
			continue
		}
		forms := append([]string{norm}, variantKeys(norm)...)
		for _, form := range forms {
			if len(form) < 4 {
				continue
			}
			size := 0
			switch {
			case strings.Contains(form, key):
				size = len(key)
			case strings.Contains(key, form):
				size = len(form)
			}
			if size > bestLen {
				best = name
				bestLen = size
			}
		}
	}
	return best
}

func variantKeys(key string) []string {
	seen := map[string]struct{}{key: {}}
	var out []string
	add := func(v string) {
		v = util.CollapseSpaces(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	amp := strings.ReplaceAll(" "+key+" ", " and ", " & ")
	and := strings.ReplaceAll(key, "&", " and ")
	for _, form := range []string{key, amp, and} {
		add(form)
		for _, suffix := range productSuffixes {
			if strings.HasSuffix(form, suffix) {
				add(strings.TrimSuffix(form, suffix))
			}
		}
	}
	return out
}

func firstSignificantWord(key string) string {
	for _, word := range strings.Fields(key) {
		if _, skip := insignificantWords[word]; skip {
			continue
		}
		if len(word) < 3 {
			continue
		}
		return word
	}
	return ""
}
