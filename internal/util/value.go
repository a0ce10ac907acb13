package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reNonNumeric = regexp.MustCompile(`[^0-9.\-]`)

type ParsedValue struct {
	Value   *float64
	Warning string
}

// ParseValue reads an index reading such as "52.8%", "52.8 percent" or a JSON
// number. Everything except digits, '.' and '-' is discarded first; when no
// number survives the value is nil and Warning explains why.
func ParseValue(input any) ParsedValue {
	switch v := input.(type) {
	case nil:
		return ParsedValue{Warning: "value missing"}
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ParsedValue{Warning: "value is not finite"}
		}
		return ParsedValue{Value: FloatPtr(v)}
	case float32:
		return ParseValue(float64(v))
	case int:
		return ParsedValue{Value: FloatPtr(float64(v))}
	case int64:
		return ParsedValue{Value: FloatPtr(float64(v))}
	case *float64:
		if v == nil {
			return ParsedValue{Warning: "value missing"}
		}
		return ParseValue(*v)
	case fmt.Stringer:
		return parseValueString(v.String())
	case string:
		return parseValueString(v)
	default:
		return ParsedValue{Warning: fmt.Sprintf("unsupported value type %T", input)}
	}
}

func parseValueString(raw string) ParsedValue {
	compact := reNonNumeric.ReplaceAllString(raw, "")
	compact = strings.Trim(compact, ".")
	if compact == "" || compact == "-" {
		return ParsedValue{Warning: fmt.Sprintf("no numeric content in %q", raw)}
	}
	parsed, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return ParsedValue{Warning: fmt.Sprintf("unparsable value %q", raw)}
	}
	return ParsedValue{Value: FloatPtr(parsed)}
}

// Round1 rounds to one decimal place, the precision ISM publishes.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
