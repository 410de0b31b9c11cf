package source

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
)

// Fixture serves frozen source responses from a JSON file holding an array
// of native records. Every search returns all records, leaving selection to
// the matcher. Used for offline runs and reproducible comparisons.
type Fixture struct {
	src     fieldmap.Source
	records []map[string]any
}

// LoadFixture reads a fixture file for src.
func LoadFixture(src fieldmap.Source, path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read fixture %s", path)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "source: parse fixture %s", path)
	}
	return NewFixture(src, records), nil
}

// NewFixture creates a fixture adapter over in-memory records.
func NewFixture(src fieldmap.Source, records []map[string]any) *Fixture {
	return &Fixture{src: src, records: records}
}

// Name implements Adapter.
func (f *Fixture) Name() string { return f.src.Name }

// SearchByAddress implements Adapter.
func (f *Fixture) SearchByAddress(ctx context.Context, _ string) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: %s search", f.src.Name)
	}
	out := make([]model.Candidate, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, toCandidate(&f.src, rec))
	}
	return out, nil
}

// GetByID implements IDLookup.
func (f *Fixture) GetByID(ctx context.Context, id string) (*model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: %s get %s", f.src.Name, id)
	}
	for _, rec := range f.records {
		c := toCandidate(&f.src, rec)
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}
