package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/store"
	"github.com/sells-group/listing-recon/pkg/salesforce"
)

type fakeComparer struct {
	scores map[string]int
	fail   map[string]bool
}

func (f *fakeComparer) Compare(_ context.Context, ref model.Property) (*model.PropertyComparison, error) {
	if f.fail[ref.ID] {
		return nil, errors.New("boom")
	}
	return &model.PropertyComparison{
		Property:           ref,
		OverallConsistency: f.scores[ref.ID],
		CriticalIssues:     []string{"Price differs significantly between sources"},
		ComparedAt:         time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Sources: []model.SourceInfo{
			{Name: "crm", Label: "CRM", Primary: true, Status: model.SourceConnected},
			{Name: "daft", Label: "Daft", Status: model.SourceError, Error: "timeout"},
		},
	}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	props   []model.Property
	saved   []string
	filters []store.PropertyFilter
	saveErr error
}

func (s *fakeStore) ListProperties(_ context.Context, f store.PropertyFilter) ([]model.Property, error) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
	if f.Offset >= len(s.props) {
		return nil, nil
	}
	end := min(f.Offset+f.Limit, len(s.props))
	return s.props[f.Offset:end], nil
}

func (s *fakeStore) SaveComparison(_ context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, pc.Property.ID)
	return &model.ComparisonRun{ID: "run-" + pc.Property.ID, PropertyID: pc.Property.ID}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	done     int
}

func (r *fakeRecorder) Audited(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *fakeRecorder) AuditCompleted(time.Time) { r.done++ }

type fakeSF struct {
	mu      sync.Mutex
	records []map[string]any
	object  string
	err     error
}

func (f *fakeSF) InsertCollection(_ context.Context, obj string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.object = obj
	f.records = append(f.records, records...)
	out := make([]salesforce.CollectionResult, len(records))
	for i := range records {
		out[i] = salesforce.CollectionResult{ID: fmt.Sprintf("a0%d", i), Success: true}
	}
	return out, nil
}

func props(ids ...string) []model.Property {
	out := make([]model.Property, len(ids))
	for i, id := range ids {
		out[i] = model.Property{ID: id, Address: id + " Main Street", County: "Dublin"}
	}
	return out
}

func TestRun_CountsAndBands(t *testing.T) {
	st := &fakeStore{props: props("P1", "P2", "P3", "P4")}
	cmp := &fakeComparer{
		scores: map[string]int{"P1": 95, "P2": 75, "P3": 40},
		fail:   map[string]bool{"P4": true},
	}
	rec := &fakeRecorder{}

	sum, err := NewJob(cmp, st, WithConcurrency(2), WithRecorder(rec), WithWorst(2)).
		Run(context.Background(), store.PropertyFilter{})
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Compared)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, map[string]int{"high": 1, "medium": 1, "low": 1}, sum.Bands)
	assert.Equal(t, 3, sum.CriticalIssues)
	assert.Equal(t, map[string]int{"daft": 3}, sum.SourceErrors)

	require.Len(t, sum.Worst, 2)
	assert.Equal(t, "P3", sum.Worst[0].PropertyID)
	assert.Equal(t, "run-P3", sum.Worst[0].RunID)
	assert.Equal(t, "P2", sum.Worst[1].PropertyID)

	assert.ElementsMatch(t, []string{"P1", "P2", "P3"}, st.saved)
	assert.Equal(t, 3, rec.outcomes[OutcomeCompared])
	assert.Equal(t, 1, rec.outcomes[OutcomeFailed])
	assert.Equal(t, 1, rec.done)
}

func TestRun_PagesWithoutLimit(t *testing.T) {
	ids := make([]string, pageSize+5)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%03d", i)
	}
	st := &fakeStore{props: props(ids...)}

	sum, err := NewJob(&fakeComparer{}, st).Run(context.Background(), store.PropertyFilter{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, pageSize+5, sum.Total)
	require.Len(t, st.filters, 2)
	assert.Equal(t, 0, st.filters[0].Offset)
	assert.Equal(t, pageSize, st.filters[1].Offset)
	assert.Equal(t, "active", st.filters[1].Status)
}

func TestRun_ExplicitLimit(t *testing.T) {
	st := &fakeStore{props: props("P1", "P2", "P3")}

	sum, err := NewJob(&fakeComparer{}, st).Run(context.Background(), store.PropertyFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Len(t, st.filters, 1)
}

func TestRun_SaveFailureCounted(t *testing.T) {
	st := &fakeStore{props: props("P1"), saveErr: errors.New("disk full")}

	sum, err := NewJob(&fakeComparer{}, st).Run(context.Background(), store.PropertyFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Compared)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, sum.Worst)
}

func TestRun_ExportAndPush(t *testing.T) {
	st := &fakeStore{props: props("P1", "P2")}
	sf := &fakeSF{}
	path := filepath.Join(t.TempDir(), "audit.xlsx")

	sum, err := NewJob(&fakeComparer{scores: map[string]int{"P1": 92, "P2": 60}}, st,
		WithExport(path),
		WithSalesforce(sf, "", 50),
	).Run(context.Background(), store.PropertyFilter{})
	require.NoError(t, err)

	assert.Equal(t, path, sum.ExportPath)
	assert.FileExists(t, path)
	assert.Equal(t, 2, sum.Pushed)
	assert.Equal(t, 0, sum.PushFailed)
	assert.Equal(t, salesforce.DefaultAuditObject, sf.object)
	require.Len(t, sf.records, 2)
	assert.Equal(t, "Daft", sf.records[0]["Failed_Sources__c"])
}

func TestRun_PushErrorReturnedWithSummary(t *testing.T) {
	st := &fakeStore{props: props("P1")}
	rec := &fakeRecorder{}

	sum, err := NewJob(&fakeComparer{}, st,
		WithSalesforce(&fakeSF{err: errors.New("unauthorized")}, "Custom__c", 0),
		WithRecorder(rec),
	).Run(context.Background(), store.PropertyFilter{})
	require.Error(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Compared)
	assert.Equal(t, 0, sum.Pushed)
	assert.Equal(t, 0, rec.done)
}

func TestToAudit(t *testing.T) {
	pc, err := (&fakeComparer{scores: map[string]int{"P1": 72}}).Compare(context.Background(), props("P1")[0])
	require.NoError(t, err)

	a := toAudit("run-1", pc)
	assert.Equal(t, "run-1", a.RunID)
	assert.Equal(t, "P1 Main Street, Dublin", a.Address)
	assert.Equal(t, "medium", a.Band)
	assert.Equal(t, []string{"Daft"}, a.ErrorSources)
}
