package cache

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/config"
)

// Open creates the cache named by cfg.Driver. "none" and "" return nil.
func Open(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, eris.New("cache: redis_url is required for the redis driver")
		}
		r, err := NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
