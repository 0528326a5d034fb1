package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Helpers for picking typed values out of the raw webhook payload. The
// platform contract is JSON, so everything arrives as map[string]any.

func rawMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

func rawSlice(m map[string]any, key string) ([]any, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m[key].([]any)
	return s, ok
}

func rawString(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

func rawBool(m map[string]any, key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	b, ok := m[key].(bool)
	return b, ok
}

func rawFloat(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// rawPresent mirrors the platform's definition of "missing": absent, null or
// the empty string all count as not present.
func rawPresent(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// optString returns a pointer for a non-empty string value, nil otherwise.
func optString(m map[string]any, key string) *string {
	if s, ok := rawString(m, key); ok && s != "" {
		return &s
	}
	return nil
}

// dateLayouts are tried in order when parsing platform timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a platform date string. The platform nominally sends
// RFC 3339 but has been observed without zone or fractional parts.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount parses a monetary or quantity value that may arrive as a
// string or a JSON number.
func parseAmount(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	}
	return decimal.Decimal{}, false
}
