// Package reconcile compares a reference property against every configured
// listing source and composes the per-field discrepancy report.
package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/config"
	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/match"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/source"
)

// Observer receives timing and outcome data from comparisons.
type Observer interface {
	ObserveFetch(source string, status model.SourceStatus, candidates int, d time.Duration)
	ObserveComparison(pc *model.PropertyComparison, d time.Duration)
}

// Orchestrator runs comparisons for single properties.
type Orchestrator struct {
	mapper     *fieldmap.Mapper
	registry   *source.Registry
	matcher    *match.Matcher
	comparator *compare.Comparator
	timeouts   map[string]time.Duration
	observer   Observer
	now        func() time.Time // injectable for testing
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMatcher replaces the default candidate matcher.
func WithMatcher(m *match.Matcher) Option {
	return func(o *Orchestrator) {
		o.matcher = m
	}
}

// WithTimeouts sets per-source fetch timeouts. Sources not listed use
// config.DefaultSourceTimeout.
func WithTimeouts(t map[string]time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeouts = t
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// NewOrchestrator creates an orchestrator over the mapping table behind
// mapper and the adapters in registry.
func NewOrchestrator(mapper *fieldmap.Mapper, registry *source.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		mapper:     mapper,
		registry:   registry,
		matcher:    match.NewMatcher(mapper),
		comparator: compare.NewComparator(mapper.Table().Currency),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithNow fixes the clock for testing.
func (o *Orchestrator) WithNow(t time.Time) *Orchestrator {
	o.now = func() time.Time { return t }
	return o
}

// Sources returns the source list with static availability, as the
// orchestrator would report it before fetching.
func (o *Orchestrator) Sources() []model.SourceInfo {
	table := o.mapper.Table()
	out := make([]model.SourceInfo, 0, len(table.Sources))
	for _, src := range table.Sources {
		info := model.SourceInfo{Name: src.Name, Label: src.Label, Primary: src.Primary, Status: model.SourceConnected}
		if !src.Primary && o.registry.Get(src.Name) == nil {
			info.Status = model.SourceNotConfigured
		}
		out = append(out, info)
	}
	return out
}

// fetchResult is one source's settled fetch. Each goroutine owns one slot.
type fetchResult struct {
	candidate  *model.Candidate
	score      float64
	candidates int
	err        error
	at         time.Time
	took       time.Duration
}

// Compare reconciles ref against every configured source. Source failures
// are reported in the result, never returned. The only errors are contract
// violations in the mapping table.
func (o *Orchestrator) Compare(ctx context.Context, ref model.Property) (*model.PropertyComparison, error) {
	start := time.Now()
	table := o.mapper.Table()
	log := zap.L().With(zap.String("property_id", ref.ID))

	// Static availability first, then one fetch per configured secondary source.
	infos := o.Sources()
	slots := make([]fetchResult, len(table.Sources))
	var g errgroup.Group
	for i, src := range table.Sources {
		if src.Primary || infos[i].Status == model.SourceNotConfigured {
			continue
		}
		adapter := o.registry.Get(src.Name)
		g.Go(func() error {
			slots[i] = o.fetch(ctx, adapter, ref)
			return nil
		})
	}
	_ = g.Wait()

	for i, src := range table.Sources {
		info := &infos[i]
		if src.Primary {
			if !ref.UpdatedAt.IsZero() {
				at := ref.UpdatedAt
				info.LastSync = &at
			}
			info.CandidateID = ref.ID
			continue
		}
		if info.Status == model.SourceNotConfigured {
			continue
		}

		res := slots[i]
		info.Candidates = res.candidates
		if res.err != nil {
			info.Status = model.SourceError
			info.Error = res.err.Error()
			log.Warn("source fetch failed", zap.String("source", src.Name), zap.Error(res.err))
		} else {
			info.Status = model.SourceConnected
			at := res.at
			info.LastSync = &at
			if res.candidate != nil {
				info.CandidateID = res.candidate.ID
				info.MatchScore = res.score
			}
		}
		if o.observer != nil {
			o.observer.ObserveFetch(src.Name, info.Status, res.candidates, res.took)
		}
	}

	fields := make([]model.ComparisonField, 0, len(table.Attributes))
	for _, attr := range table.Attributes {
		values := make(map[string]any, len(table.Sources))
		for i, src := range table.Sources {
			if src.Primary {
				v, err := ref.Attribute(attr.Key)
				if err != nil {
					return nil, eris.Wrapf(err, "reconcile: attribute %s", attr.Key)
				}
				values[src.Name] = v
				continue
			}
			values[src.Name] = o.mapper.MapField(src.Name, slots[i].candidate, attr.Key)
		}
		fields = append(fields, o.comparator.CompareField(attr, values))
	}

	summary := compare.Aggregate(fields, infos)
	pc := &model.PropertyComparison{
		Property:           ref,
		Fields:             fields,
		Sources:            infos,
		OverallConsistency: summary.OverallConsistency,
		CriticalIssues:     summary.CriticalIssues,
		Suggestions:        summary.Suggestions,
		ComparedAt:         o.now().UTC(),
	}

	if o.observer != nil {
		o.observer.ObserveComparison(pc, time.Since(start))
	}
	log.Info("comparison complete",
		zap.Int("overall_consistency", pc.OverallConsistency),
		zap.Int("critical_issues", len(pc.CriticalIssues)),
	)
	return pc, nil
}

// fetch runs one source branch: id lookup when possible, address search
// otherwise, then candidate matching. Panics and timeouts become errors.
func (o *Orchestrator) fetch(ctx context.Context, adapter source.Adapter, ref model.Property) (res fetchResult) {
	name := adapter.Name()
	timeout, ok := o.timeouts[name]
	if !ok || timeout <= 0 {
		timeout = config.DefaultSourceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = fetchResult{err: eris.Errorf("%s adapter panic: %v", name, r)}
		}
		res.took = time.Since(start)
	}()

	candidates, err := o.candidates(ctx, adapter, ref)
	if err != nil {
		return fetchResult{err: err}
	}
	for i := range candidates {
		if candidates[i].Source == "" {
			candidates[i].Source = name
		}
	}

	best, score := o.matcher.FindBestMatch(ref, name, candidates)
	return fetchResult{
		candidate:  best,
		score:      score,
		candidates: len(candidates),
		at:         o.now().UTC(),
	}
}

func (o *Orchestrator) candidates(ctx context.Context, adapter source.Adapter, ref model.Property) ([]model.Candidate, error) {
	name := adapter.Name()
	if lookup, ok := adapter.(source.IDLookup); ok {
		if id := ref.ExternalIDs[name]; id != "" {
			c, err := lookup.GetByID(ctx, id)
			switch {
			case err != nil:
				zap.L().Debug("id lookup failed, searching by address",
					zap.String("source", name), zap.String("external_id", id), zap.Error(err))
			case c != nil:
				return []model.Candidate{*c}, nil
			}
		}
	}

	candidates, err := adapter.SearchByAddress(ctx, ref.FullAddress())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}
