package catalog

import (
	"github.com/fsgeodata/catalog-kb-go/internal/store"
)

// Config exposes a stable wrapper for store configuration in package mode.
// Fields map directly to internal/store.Config.
type Config struct {
	URL            string
	AuthToken      string
	EmbeddingDims  int
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

func (c *Config) toInternal() *store.Config {
	cfg := store.NewConfig()
	if c.URL != "" {
		cfg.URL = c.URL
	}
	if c.AuthToken != "" {
		cfg.AuthToken = c.AuthToken
	}
	if c.EmbeddingDims > 0 {
		cfg.EmbeddingDims = c.EmbeddingDims
	}
	if c.MaxOpenConns > 0 {
		cfg.MaxOpenConns = c.MaxOpenConns
	}
	if c.MaxIdleConns > 0 {
		cfg.MaxIdleConns = c.MaxIdleConns
	}
	if c.ConnMaxIdleSec > 0 {
		cfg.ConnMaxIdleSec = c.ConnMaxIdleSec
	}
	if c.ConnMaxLifeSec > 0 {
		cfg.ConnMaxLifeSec = c.ConnMaxLifeSec
	}
	return cfg
}
