package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement
func (s *Store) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	// fast path read
	s.stmtMu.RLock()
	if stmt, ok := s.stmts[sqlText]; ok {
		s.stmtMu.RUnlock()
		metrics.Default().IncStmtCacheHit()
		return stmt, nil
	}
	s.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss()

	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	s.stmtMu.Lock()
	if existing, ok := s.stmts[sqlText]; ok {
		s.stmtMu.Unlock()
		_ = stmt.Close()
		return existing, nil
	}
	s.stmts[sqlText] = stmt
	s.stmtMu.Unlock()
	return stmt, nil
}
