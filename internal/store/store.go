// Package store persists the metadata catalog in libSQL: datasets and
// their attributes, domain constraints, lineage and relationship edges,
// and the embedded text chunks backing retrieval.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/fsgeodata/catalog-kb-go/internal/embeddings"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

// Store is the single-database catalog store. All methods are safe for
// concurrent use.
type Store struct {
	config   *Config
	provider embeddings.Provider
	db       *sql.DB

	stmtMu sync.RWMutex
	stmts  map[string]*sql.Stmt

	capMu sync.RWMutex
	caps  capFlags
}

// New opens the catalog database, initializes the schema, and probes
// optional engine capabilities. The provider may be nil; vector indexing
// is then disabled and chunks are stored without embeddings.
func New(config *Config, provider embeddings.Provider) (*Store, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	s := &Store{
		config:   config,
		provider: provider,
		stmts:    make(map[string]*sql.Stmt),
	}

	dbURL := config.URL
	if !strings.HasPrefix(dbURL, "file:") && config.AuthToken != "" {
		if u, perr := url.Parse(dbURL); perr == nil {
			q := u.Query()
			q.Set("authToken", config.AuthToken)
			u.RawQuery = q.Encode()
			dbURL = u.String()
		}
	}
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := s.initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleSec) * time.Second)
	}
	if config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifeSec) * time.Second)
	}
	s.db = db

	// Reconcile embedding dims with an existing DB to avoid env drift.
	if dbDims := detectDBEmbeddingDims(db); dbDims > 0 && dbDims != s.config.EmbeddingDims {
		log.Printf("Embedding dims mismatch: DB=%d, Config=%d. Adopting DB dims to preserve compatibility.", dbDims, s.config.EmbeddingDims)
		s.config.EmbeddingDims = dbDims
	}
	if s.provider != nil && s.provider.Dimensions() != s.config.EmbeddingDims {
		s.provider = embeddings.WrapToDims(s.provider, s.config.EmbeddingDims, "")
	}

	s.detectCapabilities(context.Background())

	stats := db.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
	return s, nil
}

// EmbeddingDims reports the dimensionality the chunk index was created with.
func (s *Store) EmbeddingDims() int { return s.config.EmbeddingDims }

// Provider exposes the (possibly nil) embedding provider in use.
func (s *Store) Provider() embeddings.Provider { return s.provider }

// Counts reports the corpus size: dataset and chunk row counts.
func (s *Store) Counts(ctx context.Context) (datasets, chunks int64, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM datasets").Scan(&datasets); err != nil {
		return 0, 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return datasets, chunks, nil
}

// initialize creates tables and indexes if they don't exist
func (s *Store) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(s.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// detectDBEmbeddingDims introspects the schema to infer the F32_BLOB size
// for chunks.embedding.
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='chunks'").Scan(&sqlText)
	if sqlText != "" {
		low := strings.ToLower(sqlText)
		idx := strings.Index(low, "f32_blob(")
		if idx >= 0 {
			rest := low[idx+len("f32_blob("):]
			if end := strings.Index(rest, ")"); end > 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	var blob []byte
	_ = db.QueryRow("SELECT embedding FROM chunks WHERE embedding IS NOT NULL LIMIT 1").Scan(&blob)
	if len(blob) > 0 && len(blob)%4 == 0 {
		return len(blob) / 4
	}
	return 0
}

// PoolStats reports connection pool usage for periodic metrics.
func (s *Store) PoolStats() (inUse, idle int) {
	stats := s.db.Stats()
	return stats.InUse, stats.Idle
}

// Close releases prepared statements and the underlying pool.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
	s.stmtMu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
