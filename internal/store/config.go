package store

import (
	"os"
	"strconv"
)

// Config holds the catalog database configuration
type Config struct {
	URL           string
	AuthToken     string
	EmbeddingDims int

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int

	// FuzzyThreshold is the minimum trigram similarity for dataset name
	// resolution.
	FuzzyThreshold float64
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("CATALOG_DB_URL")
	if url == "" {
		url = "file:./catalog.db"
	}
	dims := 768
	if v := os.Getenv("EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dims = n
		}
	}
	return &Config{
		URL:            url,
		AuthToken:      os.Getenv("CATALOG_DB_AUTH_TOKEN"),
		EmbeddingDims:  dims,
		MaxOpenConns:   envInt("CATALOG_DB_MAX_OPEN_CONNS", 0),
		MaxIdleConns:   envInt("CATALOG_DB_MAX_IDLE_CONNS", 0),
		ConnMaxIdleSec: envInt("CATALOG_DB_CONN_MAX_IDLE_SEC", 0),
		ConnMaxLifeSec: envInt("CATALOG_DB_CONN_MAX_LIFE_SEC", 0),
		FuzzyThreshold: envFloat("FUZZY_MATCH_THRESHOLD", fuzzyMatchThreshold),
	}
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
