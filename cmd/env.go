package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/cache"
	"github.com/sells-group/listing-recon/internal/config"
	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/match"
	"github.com/sells-group/listing-recon/internal/metrics"
	"github.com/sells-group/listing-recon/internal/reconcile"
	"github.com/sells-group/listing-recon/internal/source"
	"github.com/sells-group/listing-recon/internal/store"
	"github.com/sells-group/listing-recon/pkg/salesforce"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "listing-recon.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSalesforce() (salesforce.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (RECON_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return salesforce.Dial(salesforce.Config{
		LoginURL:   cfg.Salesforce.LoginURL,
		Username:   cfg.Salesforce.Username,
		ClientID:   cfg.Salesforce.ClientID,
		PrivateKey: string(pemData),
	}, salesforce.WithBatchSize(cfg.Audit.BatchSize))
}

// engine is the wired comparison stack shared by commands.
type engine struct {
	table        *fieldmap.Table
	registry     *source.Registry
	orchestrator *reconcile.Orchestrator
	metrics      *metrics.Recorder
	cache        cache.Cache

	// comparer is the orchestrator behind the cache when one is configured.
	comparer cache.Comparer
}

func loadTable(c *config.Config) (*fieldmap.Table, error) {
	if c.Fieldmap.Path == "" {
		return fieldmap.Default(), nil
	}
	return fieldmap.LoadTable(c.Fieldmap.Path)
}

// buildEngine wires the mapping table, source adapters, matcher, metrics and
// cache from configuration.
func buildEngine(c *config.Config) (*engine, error) {
	table, err := loadTable(c)
	if err != nil {
		return nil, err
	}
	registry, err := source.Build(table, c.Sources)
	if err != nil {
		return nil, err
	}

	mapper := fieldmap.NewMapper(table)
	matcher := match.NewMatcher(mapper,
		match.WithWeights(match.Weights{
			Price:    c.Match.PriceWeight,
			Bedrooms: c.Match.BedroomsWeight,
			Address:  c.Match.AddressWeight,
		}),
		match.WithThreshold(c.Match.Threshold),
	)

	e := &engine{table: table, registry: registry}

	opts := []reconcile.Option{
		reconcile.WithMatcher(matcher),
		reconcile.WithTimeouts(source.Timeouts(c.Sources)),
	}
	if c.Metrics.Enabled {
		e.metrics = metrics.New(c.Metrics.Namespace)
		opts = append(opts, reconcile.WithObserver(e.metrics))
	}
	e.orchestrator = reconcile.NewOrchestrator(mapper, registry, opts...)
	e.comparer = e.orchestrator

	cc, err := cache.Open(c.Cache)
	if err != nil {
		return nil, err
	}
	if cc != nil {
		e.cache = cc
		var onLookup func(bool)
		if e.metrics != nil {
			onLookup = e.metrics.CacheHit
		}
		ttl := time.Duration(c.Cache.TTLMinutes) * time.Minute
		e.comparer = cache.NewCompare(e.orchestrator, cc, ttl, onLookup)
	}

	zap.L().Debug("engine ready",
		zap.Strings("sources", registry.List()),
		zap.String("cache", c.Cache.Driver),
		zap.Bool("metrics", e.metrics != nil),
	)
	return e, nil
}

// Close releases the cache connection.
func (e *engine) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}
