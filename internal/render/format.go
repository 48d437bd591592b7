// Package render turns raw extracted values into display strings and
// canonicalizes historically divergent field names into the small set of
// labels the side panel shows.
package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"carbonscope/pkg/domain"
)

// Value renders value according to the built-in rules for typ. A non-empty
// template overrides the built-in rendering; it may reference {value} (the
// plain string form) and {valueMB} (the value scaled from bytes to megabytes,
// two decimals, zeros trimmed). Unknown types and values a numeric type
// cannot interpret fall back to the plain string form.
func Value(value any, typ domain.FieldType, template string) string {
	if template != "" {
		return expandTemplate(template, value)
	}
	num, numeric := toFloat(value)
	switch typ {
	case domain.FieldBytes:
		if !numeric {
			return Plain(value)
		}
		return fmt.Sprintf("%d KB", int64(math.Round(num/1024)))
	case domain.FieldTime:
		if !numeric {
			return Plain(value)
		}
		return trimmedFloat(num) + "ms"
	case domain.FieldCarbon:
		if !numeric {
			return Plain(value)
		}
		return fixed(num, 3) + "g"
	case domain.FieldEnergy:
		if !numeric {
			return Plain(value)
		}
		return fixed(num, 3) + " kWh"
	default:
		return Plain(value)
	}
}

// Plain renders a value's bare string form: empty for nil, RFC3339 for
// timestamps, fixed-notation floats, and %v for everything else.
func Plain(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return trimmedFloat(v)
	case float32:
		return trimmedFloat(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func expandTemplate(template string, value any) string {
	out := strings.ReplaceAll(template, "{value}", Plain(value))
	if strings.Contains(out, "{valueMB}") {
		mb := ""
		if num, ok := toFloat(value); ok {
			mb = fixed(num/(1024*1024), 2)
		}
		out = strings.ReplaceAll(out, "{valueMB}", mb)
	}
	return out
}

// fixed formats f with prec decimals and trims trailing zeros, so 0.500
// renders "0.5" and 2.000 renders "2". Values rounding to zero render "0".
func fixed(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

func trimmedFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), !math.IsNaN(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
