package compare

import (
	"fmt"
	"math"

	"github.com/sells-group/listing-recon/internal/model"
)

// minConnected is the number of connected sources below which more sources
// are suggested.
const minConnected = 3

// syncRatio is the consistency ratio below which synchronization
// suggestions are emitted.
const syncRatio = 0.7

// Issue and suggestion texts.
const (
	IssuePrice    = "Price differs significantly between sources"
	IssueAddress  = "Address is inconsistent across sources and may reduce search visibility"
	IssueBedrooms = "Bedroom count differs between sources and may mislead buyers"

	SuggestSchedule       = "Set up a scheduled sync from the CRM to every listing platform"
	SuggestSourceOfTruth  = "Treat the CRM feed as the source of truth and push corrections from it"
	SuggestMoreSources    = "Connect more listing sources to improve cross-checking"
	suggestSourceErrorFmt = "Check the %s connection: it failed during this comparison"
)

// Summary is the roll-up of a set of compared fields.
type Summary struct {
	OverallConsistency int      `json:"overall_consistency"`
	CriticalIssues     []string `json:"critical_issues"`
	Suggestions        []string `json:"suggestions"`
}

// Aggregate computes the overall consistency, the critical issues and the
// improvement suggestions for a comparison. No fields is vacuously 100%
// consistent.
func Aggregate(fields []model.ComparisonField, sources []model.SourceInfo) Summary {
	s := Summary{
		CriticalIssues: []string{},
		Suggestions:    []string{},
	}

	inconsistent := 0
	byKey := make(map[string]*model.ComparisonField, len(fields))
	for i := range fields {
		if fields[i].HasDifferences {
			inconsistent++
		}
		byKey[fields[i].Key] = &fields[i]
	}

	ratio := 1.0
	if len(fields) > 0 {
		ratio = 1 - float64(inconsistent)/float64(len(fields))
	}
	s.OverallConsistency = int(math.Round(ratio * 100))

	if f := byKey[model.AttrPrice]; f != nil && f.SignificantDifference {
		s.CriticalIssues = append(s.CriticalIssues, IssuePrice)
	}
	if f := byKey[model.AttrAddress]; f != nil && f.HasDifferences {
		s.CriticalIssues = append(s.CriticalIssues, IssueAddress)
	}
	if f := byKey[model.AttrBedrooms]; f != nil && f.HasDifferences {
		s.CriticalIssues = append(s.CriticalIssues, IssueBedrooms)
	}

	if ratio < syncRatio {
		s.Suggestions = append(s.Suggestions, SuggestSchedule, SuggestSourceOfTruth)
	}

	connected := 0
	for _, src := range sources {
		if src.Status == model.SourceConnected {
			connected++
		}
	}
	if connected < minConnected {
		s.Suggestions = append(s.Suggestions, SuggestMoreSources)
	}
	for _, src := range sources {
		if src.Status == model.SourceError {
			name := src.Label
			if name == "" {
				name = src.Name
			}
			s.Suggestions = append(s.Suggestions, fmt.Sprintf(suggestSourceErrorFmt, name))
		}
	}
	return s
}

// Consistency bands used by audit summaries and exports.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Band classifies an overall consistency score. Medium starts where sync
// suggestions stop being emitted.
func Band(consistency int) string {
	switch {
	case consistency >= 90:
		return BandHigh
	case consistency >= 70:
		return BandMedium
	default:
		return BandLow
	}
}
