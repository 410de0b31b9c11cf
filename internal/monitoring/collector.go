// Package monitoring watches recent comparison runs and raises webhook
// alerts when listing consistency degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/store"
)

// maxRuns caps how many runs one snapshot reads.
const maxRuns = 10000

// Snapshot is a point-in-time view of comparison health over a window.
type Snapshot struct {
	Comparisons    int            `json:"comparisons"`
	Properties     int            `json:"properties"`
	Bands          map[string]int `json:"bands"`
	LowRate        float64        `json:"low_rate"`
	AvgConsistency float64        `json:"avg_consistency"`
	CriticalIssues int            `json:"critical_issues"`
	LastComparedAt time.Time      `json:"last_compared_at,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the store method the collector needs.
type RunLister interface {
	ListComparisons(ctx context.Context, filter store.ComparisonFilter) ([]model.ComparisonRun, error)
}

// Collector gathers snapshots from stored comparison runs.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarises the runs created in the last lookbackHours. Only the
// latest run per property counts toward bands and averages.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		Bands:         map[string]int{compare.BandHigh: 0, compare.BandMedium: 0, compare.BandLow: 0},
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListComparisons(ctx, store.ComparisonFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: maxRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list comparisons")
	}
	snap.Comparisons = len(runs)

	// Runs arrive newest first.
	seen := make(map[string]bool, len(runs))
	var total int
	for _, r := range runs {
		if r.CreatedAt.After(snap.LastComparedAt) {
			snap.LastComparedAt = r.CreatedAt
		}
		if seen[r.PropertyID] {
			continue
		}
		seen[r.PropertyID] = true
		snap.Bands[compare.Band(r.OverallConsistency)]++
		snap.CriticalIssues += r.CriticalIssues
		total += r.OverallConsistency
	}

	snap.Properties = len(seen)
	if snap.Properties > 0 {
		snap.LowRate = float64(snap.Bands[compare.BandLow]) / float64(snap.Properties)
		snap.AvgConsistency = float64(total) / float64(snap.Properties)
	}
	return snap, nil
}
