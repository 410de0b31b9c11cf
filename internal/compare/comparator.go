// Package compare scores how consistently sources agree on each canonical
// attribute of a property and rolls the per-field results up into an
// overall consistency summary.
package compare

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

const (
	// differenceSpread is the relative spread above which numeric values differ.
	differenceSpread = 0.01
	// significantSpread is the relative spread above which a currency
	// difference is significant.
	significantSpread = 0.05

	currencyWeightFloor = 0.15
	numberWeightFloor   = 0.1
	otherWeightFloor    = 0.2
)

// Comparator compares one canonical attribute across sources.
type Comparator struct {
	format *Formatter
}

// NewComparator creates a Comparator that renders currency values in the
// given ISO 4217 currency.
func NewComparator(currency string) *Comparator {
	return &Comparator{format: NewFormatter(currency)}
}

// normalized is one coerced, non-null source value.
type normalized struct {
	num  float64
	key  string // identity used for distinct counting
	disp any    // value handed to the formatter
}

// CompareField builds the cross-source view of attr from raw values keyed by
// source name. Every key in values gets a Sources entry; nil, blank and
// uncoercible values are absent and their entry is nil.
func (c *Comparator) CompareField(attr fieldmap.Attribute, values map[string]any) model.ComparisonField {
	field := model.ComparisonField{
		Key:     attr.Key,
		Label:   attr.Label,
		Type:    attr.Type,
		Weight:  attr.Weight,
		Sources: make(map[string]*model.SourceValue, len(values)),
	}

	var present []normalized
	for source, raw := range values {
		n, ok := normalize(attr.Type, raw)
		if !ok {
			field.Sources[source] = nil
			continue
		}
		present = append(present, n)
		field.Sources[source] = &model.SourceValue{
			Value:   n.disp,
			Display: c.format.Format(attr.Type, n.disp),
		}
	}

	unique := distinct(present)
	field.HasDifferences = hasDifferences(attr.Type, present, unique)
	if field.HasDifferences {
		field.SignificantDifference = significant(attr, present, unique)
	}
	field.ConfidenceScore = Confidence(len(present), unique)
	field.Recommendations = Recommendations(attr.Key, field.HasDifferences)
	return field
}

// Confidence is 100 when every reporting source agrees and decreases as more
// distinct values appear. No values yields 0.
func Confidence(total, unique int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(total-unique+1) / float64(total) * 100))
}

func normalize(t model.FieldType, raw any) (normalized, bool) {
	if raw == nil {
		return normalized{}, false
	}
	switch t {
	case model.FieldCurrency, model.FieldNumber:
		f, ok := fieldmap.Float(raw)
		if !ok {
			return normalized{}, false
		}
		return normalized{num: f, key: strconv.FormatFloat(f, 'f', -1, 64), disp: f}, true
	case model.FieldDate:
		ts, ok := fieldmap.Time(raw)
		if !ok {
			return normalized{}, false
		}
		return normalized{key: ts.Format(time.RFC3339Nano), disp: ts}, true
	case model.FieldRating:
		s, ok := fieldmap.String(raw)
		if !ok {
			return normalized{}, false
		}
		s = strings.ToUpper(s)
		return normalized{key: s, disp: s}, true
	default:
		s, ok := fieldmap.String(raw)
		if !ok {
			return normalized{}, false
		}
		return normalized{key: strings.Join(strings.Fields(strings.ToLower(s)), " "), disp: s}, true
	}
}

func distinct(values []normalized) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v.key] = struct{}{}
	}
	return len(seen)
}

func hasDifferences(t model.FieldType, values []normalized, unique int) bool {
	if len(values) < 2 {
		return false
	}
	switch t {
	case model.FieldCurrency, model.FieldNumber:
		lo, hi := bounds(values)
		if lo <= 0 {
			return unique > 1
		}
		return (hi-lo)/lo > differenceSpread
	default:
		return unique > 1
	}
}

func significant(attr fieldmap.Attribute, values []normalized, unique int) bool {
	switch attr.Type {
	case model.FieldCurrency:
		lo, hi := bounds(values)
		// A zero minimum has no meaningful percentage; any spread counts as wide.
		wide := lo <= 0 || (hi-lo)/lo > significantSpread
		return wide && attr.Weight > currencyWeightFloor
	case model.FieldNumber:
		return unique > 1 && attr.Weight > numberWeightFloor
	default:
		return attr.Weight > otherWeightFloor
	}
}

func bounds(values []normalized) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v.num)
		hi = math.Max(hi, v.num)
	}
	return lo, hi
}
