package model

import "time"

// SourceStatus is the connection state of a source within one comparison run.
type SourceStatus string

const (
	SourceConnected     SourceStatus = "connected"
	SourceError         SourceStatus = "error"
	SourceLoading       SourceStatus = "loading"
	SourceNotConfigured SourceStatus = "not_configured"
)

// FieldType is the declared type of a canonical attribute.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldRating   FieldType = "rating"
)

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldCurrency, FieldDate, FieldRating:
		return true
	}
	return false
}

// SourceValue is one source's value for a field, with its display rendering.
type SourceValue struct {
	Value   any    `json:"value"`
	Display string `json:"display"`
}

// ComparisonField is the cross-source view of one canonical attribute.
// Sources holds exactly one entry per configured source; nil means the source
// had no candidate or lacked the field.
type ComparisonField struct {
	Key                   string                  `json:"key"`
	Label                 string                  `json:"label"`
	Type                  FieldType               `json:"type"`
	Weight                float64                 `json:"weight"`
	Sources               map[string]*SourceValue `json:"sources"`
	HasDifferences        bool                    `json:"has_differences"`
	SignificantDifference bool                    `json:"significant_difference"`
	ConfidenceScore       int                     `json:"confidence_score"`
	Recommendations       []string                `json:"recommendations"`
}

// SourceInfo is the per-source metadata of a comparison run.
type SourceInfo struct {
	Name        string       `json:"name"`
	Label       string       `json:"label"`
	Primary     bool         `json:"primary"`
	Status      SourceStatus `json:"status"`
	LastSync    *time.Time   `json:"last_sync,omitempty"`
	Error       string       `json:"error,omitempty"`
	CandidateID string       `json:"candidate_id,omitempty"`
	Candidates  int          `json:"candidates"`
	MatchScore  float64      `json:"match_score,omitempty"`
}

// PropertyComparison is the root result of reconciling one property.
type PropertyComparison struct {
	Property           Property          `json:"property"`
	Fields             []ComparisonField `json:"fields"`
	Sources            []SourceInfo      `json:"sources"`
	OverallConsistency int               `json:"overall_consistency"`
	CriticalIssues     []string          `json:"critical_issues"`
	Suggestions        []string          `json:"suggestions"`
	ComparedAt         time.Time         `json:"compared_at"`
}

// Field returns the comparison field for key, or nil.
func (pc *PropertyComparison) Field(key string) *ComparisonField {
	for i := range pc.Fields {
		if pc.Fields[i].Key == key {
			return &pc.Fields[i]
		}
	}
	return nil
}

// Source returns the source metadata for name, or nil.
func (pc *PropertyComparison) Source(name string) *SourceInfo {
	for i := range pc.Sources {
		if pc.Sources[i].Name == name {
			return &pc.Sources[i]
		}
	}
	return nil
}

// ComparisonRun is a persisted comparison result.
type ComparisonRun struct {
	ID                 string              `json:"id"`
	PropertyID         string              `json:"property_id"`
	OverallConsistency int                 `json:"overall_consistency"`
	CriticalIssues     int                 `json:"critical_issues"`
	Result             *PropertyComparison `json:"result,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}
