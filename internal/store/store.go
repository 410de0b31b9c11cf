// Package store persists CRM reference data and comparison history.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/model"
)

// PropertyFilter specifies criteria for listing properties.
type PropertyFilter struct {
	AgencyID string `json:"agency_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// ComparisonFilter specifies criteria for listing comparison runs.
type ComparisonFilter struct {
	PropertyID string `json:"property_id,omitempty"`
	// MaxConsistency keeps runs at or below this score when positive.
	MaxConsistency int       `json:"max_consistency,omitempty"`
	Since          time.Time `json:"since,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for reconciliation.
type Store interface {
	// CRM reference data
	UpsertAgency(ctx context.Context, a model.Agency) error
	UpsertProperty(ctx context.Context, p model.Property) error
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	ListProperties(ctx context.Context, filter PropertyFilter) ([]model.Property, error)

	// Comparison history
	SaveComparison(ctx context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error)
	GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error)
	LatestComparison(ctx context.Context, propertyID string) (*model.ComparisonRun, error)
	ListComparisons(ctx context.Context, filter ComparisonFilter) ([]model.ComparisonRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

const defaultLimit = 100

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// newRun builds the persisted row for a comparison. Runs are stamped with
// the comparison time so history orders by when sources were read.
func newRun(id string, pc *model.PropertyComparison) model.ComparisonRun {
	at := pc.ComparedAt.UTC()
	if pc.ComparedAt.IsZero() {
		at = time.Now().UTC()
	}
	return model.ComparisonRun{
		ID:                 id,
		PropertyID:         pc.Property.ID,
		OverallConsistency: pc.OverallConsistency,
		CriticalIssues:     len(pc.CriticalIssues),
		Result:             pc,
		CreatedAt:          at,
	}
}

func decodeProperty(data []byte) (*model.Property, error) {
	var p model.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal property")
	}
	return &p, nil
}

func decodeComparison(data []byte) (*model.PropertyComparison, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var pc model.PropertyComparison
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal comparison")
	}
	return &pc, nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
