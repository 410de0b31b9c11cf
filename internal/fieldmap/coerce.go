package fieldmap

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

// Float coerces a raw source value into a float64. Strings may carry currency
// symbols and thousands separators ("€450,000"). Returns false when the value
// cannot be read as a finite number.
func Float(v any) (float64, bool) {
	var f float64
	switch tv := v.(type) {
	case float64:
		f = tv
	case float32:
		f = float64(tv)
	case int:
		f = float64(tv)
	case int32:
		f = float64(tv)
	case int64:
		f = float64(tv)
	case uint:
		f = float64(tv)
	case uint32:
		f = float64(tv)
	case uint64:
		f = float64(tv)
	case json.Number:
		parsed, err := tv.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		cleaned := nonNumericRe.ReplaceAllString(tv, "")
		if cleaned == "" || cleaned == "-" || cleaned == "." {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// dateLayouts are tried in order when parsing string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2 Jan 2006",
}

// Time coerces a raw source value into a UTC timestamp. Numbers are read as
// unix seconds.
func Time(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		if tv.IsZero() {
			return time.Time{}, false
		}
		return tv.UTC(), true
	case *time.Time:
		if tv == nil || tv.IsZero() {
			return time.Time{}, false
		}
		return tv.UTC(), true
	case string:
		s := strings.TrimSpace(tv)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
	if f, ok := Float(v); ok {
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}

// String renders a raw value as text. Returns false for nil and blank values.
func String(v any) (string, bool) {
	var s string
	switch tv := v.(type) {
	case nil:
		return "", false
	case string:
		s = tv
	case float64:
		s = strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		s = strconv.Itoa(tv)
	case json.Number:
		s = tv.String()
	case bool:
		s = strconv.FormatBool(tv)
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return "", false
		}
		s = string(b)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
