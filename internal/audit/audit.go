// Package audit runs the comparison engine over many stored properties.
package audit

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/export"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/store"
	"github.com/sells-group/listing-recon/pkg/salesforce"
)

// Outcomes reported to the Recorder.
const (
	OutcomeCompared = "compared"
	OutcomeFailed   = "failed"
)

const pageSize = 100

// Comparer runs one reconciliation.
type Comparer interface {
	Compare(ctx context.Context, ref model.Property) (*model.PropertyComparison, error)
}

// Store is the persistence the job needs.
type Store interface {
	ListProperties(ctx context.Context, filter store.PropertyFilter) ([]model.Property, error)
	SaveComparison(ctx context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error)
}

// Recorder receives audit metrics. metrics.Recorder satisfies it.
type Recorder interface {
	Audited(outcome string)
	AuditCompleted(at time.Time)
}

// Entry is one audited property in the summary.
type Entry struct {
	PropertyID         string   `json:"property_id"`
	Address            string   `json:"address"`
	OverallConsistency int      `json:"overall_consistency"`
	CriticalIssues     []string `json:"critical_issues,omitempty"`
	RunID              string   `json:"run_id"`
}

// Summary reports one audit pass.
type Summary struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Total          int            `json:"total"`
	Compared       int            `json:"compared"`
	Failed         int            `json:"failed"`
	Bands          map[string]int `json:"bands"`
	CriticalIssues int            `json:"critical_issues"`
	// SourceErrors counts failed fetches per source name.
	SourceErrors map[string]int `json:"source_errors,omitempty"`
	// Worst lists the least consistent properties, lowest first.
	Worst      []Entry `json:"worst,omitempty"`
	ExportPath string  `json:"export_path,omitempty"`
	Pushed     int     `json:"pushed"`
	PushFailed int     `json:"push_failed"`
}

// Job audits a filtered set of properties.
type Job struct {
	comparer    Comparer
	store       Store
	concurrency int
	exportPath  string
	sf          salesforce.Client
	sfObject    string
	batchSize   int
	recorder    Recorder
	worstN      int
	now         func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithConcurrency bounds the number of properties compared at once.
func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithExport writes an XLSX workbook of the results to path.
func WithExport(path string) Option {
	return func(j *Job) { j.exportPath = path }
}

// WithSalesforce pushes one record per compared property to object.
func WithSalesforce(c salesforce.Client, object string, batchSize int) Option {
	return func(j *Job) {
		j.sf = c
		j.sfObject = object
		j.batchSize = batchSize
	}
}

// WithRecorder reports per-property outcomes and completion.
func WithRecorder(r Recorder) Option {
	return func(j *Job) { j.recorder = r }
}

// WithWorst sets how many low-consistency properties the summary lists.
func WithWorst(n int) Option {
	return func(j *Job) { j.worstN = n }
}

// NewJob creates an audit job.
func NewJob(c Comparer, st Store, opts ...Option) *Job {
	j := &Job{
		comparer:    c,
		store:       st,
		concurrency: 4,
		worstN:      10,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run compares every property matching filter. A filter without a limit
// pages through the whole table. Individual comparison or save failures are
// counted, not returned; export and push failures are returned after the
// summary is complete.
func (j *Job) Run(ctx context.Context, filter store.PropertyFilter) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.New().String(),
		StartedAt: j.now().UTC(),
		Bands:     map[string]int{compare.BandHigh: 0, compare.BandMedium: 0, compare.BandLow: 0},
	}

	props, err := j.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	sum.Total = len(props)

	zap.L().Info("audit: starting",
		zap.String("run_id", sum.RunID),
		zap.Int("properties", len(props)),
		zap.Int("concurrency", j.concurrency),
	)

	results := make([]*model.PropertyComparison, len(props))
	runIDs := make([]string, len(props))
	var compared, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for i, p := range props {
		g.Go(func() error {
			log := zap.L().With(zap.String("property_id", p.ID))

			pc, err := j.comparer.Compare(gctx, p)
			if err == nil {
				var run *model.ComparisonRun
				if run, err = j.store.SaveComparison(gctx, pc); err == nil {
					results[i] = pc
					runIDs[i] = run.ID
				}
			}
			if err != nil {
				failed.Add(1)
				j.record(OutcomeFailed)
				log.Error("audit: property failed", zap.Error(err))
				return nil
			}
			compared.Add(1)
			j.record(OutcomeCompared)
			log.Debug("audit: property compared", zap.Int("consistency", pc.OverallConsistency))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "audit: batch")
	}

	sum.Compared = int(compared.Load())
	sum.Failed = int(failed.Load())
	j.tally(sum, results, runIDs)

	var errs []error
	done := compact(results)
	if j.exportPath != "" {
		if err := export.WriteFile(j.exportPath, done); err != nil {
			errs = append(errs, err)
		} else {
			sum.ExportPath = j.exportPath
		}
	}
	if j.sf != nil {
		if err := j.push(ctx, sum, results, runIDs); err != nil {
			errs = append(errs, err)
		}
	}

	sum.FinishedAt = j.now().UTC()
	if j.recorder != nil && len(errs) == 0 {
		j.recorder.AuditCompleted(sum.FinishedAt)
	}

	zap.L().Info("audit: complete",
		zap.String("run_id", sum.RunID),
		zap.Int("compared", sum.Compared),
		zap.Int("failed", sum.Failed),
		zap.Int("critical_issues", sum.CriticalIssues),
	)

	if len(errs) > 0 {
		return sum, eris.Wrap(errs[0], "audit: finish")
	}
	return sum, nil
}

// load returns the properties to audit, paging when no limit is set.
func (j *Job) load(ctx context.Context, filter store.PropertyFilter) ([]model.Property, error) {
	if filter.Limit > 0 {
		props, err := j.store.ListProperties(ctx, filter)
		return props, eris.Wrap(err, "audit: list properties")
	}

	var all []model.Property
	filter.Limit = pageSize
	for {
		page, err := j.store.ListProperties(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "audit: list properties")
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		filter.Offset += pageSize
	}
}

func (j *Job) record(outcome string) {
	if j.recorder != nil {
		j.recorder.Audited(outcome)
	}
}

func (j *Job) tally(sum *Summary, results []*model.PropertyComparison, runIDs []string) {
	var entries []Entry
	for i, pc := range results {
		if pc == nil {
			continue
		}
		sum.Bands[compare.Band(pc.OverallConsistency)]++
		sum.CriticalIssues += len(pc.CriticalIssues)
		for _, si := range pc.Sources {
			if si.Status == model.SourceError {
				if sum.SourceErrors == nil {
					sum.SourceErrors = make(map[string]int)
				}
				sum.SourceErrors[si.Name]++
			}
		}
		entries = append(entries, Entry{
			PropertyID:         pc.Property.ID,
			Address:            pc.Property.FullAddress(),
			OverallConsistency: pc.OverallConsistency,
			CriticalIssues:     pc.CriticalIssues,
			RunID:              runIDs[i],
		})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].OverallConsistency < entries[b].OverallConsistency
	})
	if len(entries) > j.worstN {
		entries = entries[:j.worstN]
	}
	sum.Worst = entries
}

func (j *Job) push(ctx context.Context, sum *Summary, results []*model.PropertyComparison, runIDs []string) error {
	var audits []salesforce.ListingAudit
	for i, pc := range results {
		if pc == nil {
			continue
		}
		audits = append(audits, toAudit(runIDs[i], pc))
	}

	res, err := salesforce.PushAudits(ctx, j.sf, j.sfObject, audits, j.batchSize)
	sum.PushFailed = salesforce.Failed(res)
	sum.Pushed = len(res) - sum.PushFailed
	if err != nil {
		return err
	}
	if sum.PushFailed > 0 {
		zap.L().Warn("audit: some salesforce records were rejected", zap.Int("rejected", sum.PushFailed))
	}
	return nil
}

func toAudit(runID string, pc *model.PropertyComparison) salesforce.ListingAudit {
	a := salesforce.ListingAudit{
		RunID:              runID,
		PropertyID:         pc.Property.ID,
		Address:            pc.Property.FullAddress(),
		OverallConsistency: pc.OverallConsistency,
		Band:               compare.Band(pc.OverallConsistency),
		CriticalIssues:     pc.CriticalIssues,
		Suggestions:        pc.Suggestions,
		ComparedAt:         pc.ComparedAt,
	}
	for _, si := range pc.Sources {
		if si.Status == model.SourceError {
			a.ErrorSources = append(a.ErrorSources, si.Label)
		}
	}
	return a
}

func compact(results []*model.PropertyComparison) []*model.PropertyComparison {
	out := make([]*model.PropertyComparison, 0, len(results))
	for _, pc := range results {
		if pc != nil {
			out = append(out, pc)
		}
	}
	return out
}
