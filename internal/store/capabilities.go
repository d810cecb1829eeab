package store

import (
	"context"
	"strings"
	"time"
)

// capFlags stores capability detection for the catalog DB handle
type capFlags struct {
	checked    bool
	vectorTopK bool
	fts5       bool
}

// detectCapabilities probes for vector_top_k and FTS5 support and records
// the flags. Failures downgrade to the portable fallbacks.
func (s *Store) detectCapabilities(ctx context.Context) {
	s.capMu.RLock()
	caps := s.caps
	s.capMu.RUnlock()
	if caps.checked {
		return
	}

	// Skip the ANN probe for in-memory test URLs to avoid driver quirks
	if strings.Contains(s.config.URL, "mode=memory") {
		caps.vectorTopK = false
	} else {
		zero := s.vectorZeroString()
		ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		rows, err := s.db.QueryContext(ctx2, "SELECT id FROM vector_top_k('idx_chunks_embedding', vector32(?), 1) LIMIT 1", zero)
		if rows != nil {
			rows.Close()
		}
		cancel()
		caps.vectorTopK = err == nil
	}

	// Detect FTS5 support by attempting to create a temporary virtual table
	ctx3, cancel3 := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel3()
	if _, err := s.db.ExecContext(ctx3, "CREATE VIRTUAL TABLE IF NOT EXISTS temp._fts5_probe USING fts5(x)"); err == nil {
		_, _ = s.db.ExecContext(ctx3, "DROP TABLE IF EXISTS temp._fts5_probe")
		caps.fts5 = true
		if err := s.ensureFTSSchema(context.Background()); err != nil {
			caps.fts5 = false
		}
		if caps.fts5 {
			if _, verr := s.db.ExecContext(context.Background(), "SELECT 1 FROM fts_chunks WHERE 1=0"); verr != nil {
				caps.fts5 = false
			}
		}
	} else {
		caps.fts5 = false
	}

	caps.checked = true
	s.capMu.Lock()
	s.caps = caps
	s.capMu.Unlock()
}

func (s *Store) ensureFTSSchema(ctx context.Context) error {
	for _, stmt := range ftsSchema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// VectorSearchEnabled reports whether ANN top-k is available.
func (s *Store) VectorSearchEnabled() bool {
	s.capMu.RLock()
	defer s.capMu.RUnlock()
	return s.caps.vectorTopK
}

// LexicalSearchEnabled reports whether FTS5 ranking is available; without
// it lexical search degrades to LIKE scans.
func (s *Store) LexicalSearchEnabled() bool {
	s.capMu.RLock()
	defer s.capMu.RUnlock()
	return s.caps.fts5
}

func (s *Store) disableVectorTopK() {
	s.capMu.Lock()
	s.caps.vectorTopK = false
	s.capMu.Unlock()
}
