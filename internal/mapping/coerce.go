package mapping

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// isoLayouts are the timestamp layouts accepted as "ISO-8601" input, most
// specific first.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce applies type coercion by canonical field-name convention.
//
// Order of checks matters: date/time markers win over everything else so a
// field like "amount_updated_at" is treated as a timestamp, matching how
// upstream sources name their columns.
//
//   - date/time marker: parsed as ISO-8601 best effort; unparsable values
//     pass through unchanged (debug note, never an error)
//   - amount/revenue: decimal or null
//   - probability: float within [0,100], out of range or unparsable -> null
//   - employees or *_count: integer or null
//   - everything else: strings trimmed, other types passed through
//
// Extras are never coerced; callers only pass mapped canonical fields here.
func Coerce(field string, value any) any {
	name := strings.ToLower(field)

	switch {
	case isDateField(name):
		return coerceTimestamp(field, value)
	case strings.Contains(name, "amount") || strings.Contains(name, "revenue"):
		return coerceDecimal(value)
	case strings.Contains(name, "probability"):
		return coerceProbability(value)
	case strings.Contains(name, "employees") || strings.HasSuffix(name, "_count"):
		return coerceInteger(value)
	default:
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
		return value
	}
}

func isDateField(name string) bool {
	return strings.Contains(name, "date") ||
		strings.Contains(name, "time") ||
		strings.HasSuffix(name, "_at")
}

// coerceTimestamp normalizes recognizable timestamps to RFC 3339.
// Unparsable input passes through verbatim.
func coerceTimestamp(field string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	slog.Debug("timestamp coercion passthrough", "field", field, "value", s)
	return value
}

// coerceDecimal parses a decimal amount, tolerating currency symbols and
// thousands separators. Unparsable -> nil.
func coerceDecimal(value any) any {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

// coerceProbability parses a float and rejects values outside [0,100].
func coerceProbability(value any) any {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 || f > 100 {
		return nil
	}
	return f
}

// coerceInteger parses an integer count. Unparsable -> nil.
func coerceInteger(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		return n
	default:
		return nil
	}
}
