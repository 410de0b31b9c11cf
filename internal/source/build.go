package source

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/config"
	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/resilience"
	"github.com/sells-group/listing-recon/pkg/listing"
)

// Build creates adapters for every secondary source in the table that has
// configuration. Fixture files take precedence over base URLs. Sources
// without configuration are left out of the registry.
func Build(table *fieldmap.Table, cfgs map[string]config.SourceConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, src := range table.Sources {
		if src.Primary {
			continue
		}
		cfg, ok := cfgs[src.Name]
		if !ok || !cfg.Configured() {
			zap.L().Debug("source not configured", zap.String("source", src.Name))
			continue
		}

		if cfg.Fixture != "" {
			fx, err := LoadFixture(src, cfg.Fixture)
			if err != nil {
				return nil, err
			}
			reg.Register(fx)
			continue
		}

		client := listing.NewClient(cfg.BaseURL, cfg.APIKey,
			listing.WithSearchPath(cfg.SearchPath),
			listing.WithItemPath(cfg.ItemPath),
			listing.WithResultsKey(resultsKey(cfg)),
			listing.WithRateLimit(cfg.RateLimit),
		)

		retry := resilience.DefaultRetryConfig()
		if cfg.Retries > 0 {
			retry.MaxAttempts = cfg.Retries + 1
		}
		breaker := resilience.DefaultBreakerConfig()
		if cfg.BreakerThreshold > 0 {
			breaker.FailureThreshold = uint32(cfg.BreakerThreshold)
		}
		if cfg.BreakerResetSecs > 0 {
			breaker.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
		}

		reg.Register(NewREST(src, client, WithRetry(retry), WithBreaker(breaker)))
	}
	return reg, nil
}

// Timeouts returns the per-source fetch timeouts from configuration.
func Timeouts(cfgs map[string]config.SourceConfig) map[string]time.Duration {
	out := make(map[string]time.Duration, len(cfgs))
	for name, cfg := range cfgs {
		out[name] = cfg.Timeout()
	}
	return out
}

func resultsKey(cfg config.SourceConfig) string {
	if cfg.ResultsKey == "" {
		return "results"
	}
	if cfg.ResultsKey == "-" {
		return ""
	}
	return cfg.ResultsKey
}
