package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

// UpsertChunks indexes text chunks for retrieval. Chunks without an ID
// get a generated one; chunks without an embedding are embedded through
// the provider when one is configured. Returns the chunk IDs in input
// order.
func (s *Store) UpsertChunks(ctx context.Context, chunks []catalogtype.Chunk) ([]string, error) {
	done := metrics.TimeOp("db_upsert_chunks")
	success := false
	defer func() { done(success) }()

	for i := range chunks {
		if strings.TrimSpace(chunks[i].Content) == "" {
			return nil, fmt.Errorf("%w: chunk content must be non-empty", catalogtype.ErrValidation)
		}
		if chunks[i].Kind == "" {
			chunks[i].Kind = catalogtype.ChunkSummary
		}
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
	}

	if s.provider != nil {
		var missing []int
		var inputs []string
		for i, c := range chunks {
			if len(c.Embedding) == 0 {
				missing = append(missing, i)
				inputs = append(inputs, c.Content)
			}
		}
		if len(inputs) > 0 {
			vecs, err := s.provider.Embed(ctx, inputs)
			if err != nil {
				return nil, fmt.Errorf("failed to embed %d chunks: %w", len(inputs), err)
			}
			if len(vecs) != len(inputs) {
				return nil, fmt.Errorf("provider returned %d embeddings for %d chunks", len(vecs), len(inputs))
			}
			for j, i := range missing {
				chunks[i].Embedding = vecs[j]
			}
		}
	}

	err := withRetry(ctx, "upsert_chunks", func() error {
		return s.upsertChunksTx(ctx, chunks)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	success = true
	return ids, nil
}

func (s *Store) upsertChunksTx(ctx context.Context, chunks []catalogtype.Chunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for chunks: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, c := range chunks {
		vectorString, vErr := s.vectorToString(c.Embedding)
		if vErr != nil {
			return fmt.Errorf("failed to convert embedding for chunk %q: %w", c.ID, vErr)
		}
		keywords, kErr := encodeKeywords(c.Keywords)
		if kErr != nil {
			return fmt.Errorf("failed to encode keywords for chunk %q: %w", c.ID, kErr)
		}
		result, uErr := tx.ExecContext(ctx,
			"UPDATE chunks SET dataset = ?, kind = ?, content = ?, keywords = ?, embedding = vector32(?) WHERE id = ?",
			c.Dataset, c.Kind, c.Content, keywords, vectorString, c.ID)
		if uErr != nil {
			return fmt.Errorf("failed to update chunk %q: %w", c.ID, uErr)
		}
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("failed to get rows affected for chunk update: %w", raErr)
		}
		if rowsAffected == 0 {
			if _, iErr := tx.ExecContext(ctx,
				"INSERT INTO chunks (id, dataset, kind, content, keywords, embedding) VALUES (?, ?, ?, ?, ?, vector32(?))",
				c.ID, c.Dataset, c.Kind, c.Content, keywords, vectorString); iErr != nil {
				return fmt.Errorf("failed to insert chunk %q: %w", c.ID, iErr)
			}
		}
	}
	return tx.Commit()
}

func encodeKeywords(keywords []string) (any, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeKeywords(raw sql.NullString, c *catalogtype.Chunk) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), &c.Keywords); err != nil {
		log.Printf("Warning: Failed to decode keywords for chunk %q: %v", c.ID, err)
	}
}

// SimilaritySearch returns the chunks nearest to the query embedding by
// cosine distance, scored as 1 - distance. Uses the ANN index when the
// engine supports vector_top_k, otherwise falls back to a full scan.
func (s *Store) SimilaritySearch(ctx context.Context, embedding []float32, limit int) ([]catalogtype.ScoredChunk, error) {
	done := metrics.TimeOp("db_similarity_search")
	success := false
	defer func() { done(success) }()

	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: search embedding cannot be empty", catalogtype.ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", catalogtype.ErrInvalidArgument)
	}
	vectorString, err := s.vectorToString(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search embedding: %w", err)
	}
	zeroString := s.vectorZeroString()

	useTopK := s.VectorSearchEnabled()
	var rows *sql.Rows
	if useTopK {
		topK := `WITH vt AS (
            SELECT id FROM vector_top_k('idx_chunks_embedding', vector32(?), ?)
        )
        SELECT c.id, c.dataset, c.kind, c.content, c.keywords,
               vector_distance_cos(c.embedding, vector32(?)) as distance
        FROM vt JOIN chunks c ON c.rowid = vt.id
        WHERE c.embedding IS NOT NULL AND c.embedding != vector32(?)
        ORDER BY distance ASC
        LIMIT ?`
		stmt, perr := s.getPreparedStmt(ctx, topK)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, limit, vectorString, zeroString, limit)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function: vector_top_k") {
			s.disableVectorTopK()
			useTopK = false
		} else if err != nil {
			return nil, fmt.Errorf("failed ANN search: %w", err)
		}
	}
	if !useTopK {
		query := `SELECT c.id, c.dataset, c.kind, c.content, c.keywords,
               vector_distance_cos(c.embedding, vector32(?)) as distance
        FROM chunks c
        WHERE c.embedding IS NOT NULL AND c.embedding != vector32(?)
        ORDER BY distance ASC
        LIMIT ?`
		stmt, perr := s.getPreparedStmt(ctx, query)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, zeroString, limit)
	}
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "no such function: vector_distance_cos") || strings.Contains(low, "no such function: vector32") {
			results, sErr := s.similarityScan(ctx, embedding, limit)
			if sErr != nil {
				return nil, sErr
			}
			success = true
			return results, nil
		}
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	results := []catalogtype.ScoredChunk{}
	for rows.Next() {
		var c catalogtype.Chunk
		var dataset, keywords sql.NullString
		var distance float64
		if err := rows.Scan(&c.ID, &dataset, &c.Kind, &c.Content, &keywords, &distance); err != nil {
			log.Printf("Warning: Failed to scan similarity result row: %v", err)
			continue
		}
		c.Dataset = dataset.String
		decodeKeywords(keywords, &c)
		results = append(results, catalogtype.ScoredChunk{Chunk: c, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similarity results: %w", err)
	}
	success = true
	return results, nil
}

// similarityScan computes cosine similarity in Go over every stored
// embedding. Last-resort path for engines without vector functions;
// chunks indexed as zero vectors are skipped, matching the SQL path.
func (s *Store) similarityScan(ctx context.Context, embedding []float32, limit int) ([]catalogtype.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, dataset, kind, content, keywords, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks for similarity: %w", err)
	}
	defer rows.Close()

	results := []catalogtype.ScoredChunk{}
	for rows.Next() {
		var c catalogtype.Chunk
		var dataset, keywords sql.NullString
		var blob []byte
		if err := rows.Scan(&c.ID, &dataset, &c.Kind, &c.Content, &keywords, &blob); err != nil {
			log.Printf("Warning: Failed to scan chunk embedding row: %v", err)
			continue
		}
		stored, vErr := s.extractVector(blob)
		if vErr != nil {
			log.Printf("Warning: Skipping chunk %q with malformed embedding: %v", c.ID, vErr)
			continue
		}
		score, ok := cosineSimilarity(embedding, stored)
		if !ok {
			continue
		}
		c.Dataset = dataset.String
		decodeKeywords(keywords, &c)
		results = append(results, catalogtype.ScoredChunk{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk embeddings: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// LexicalSearch returns chunks matching the query text, best first, with
// scores normalized to (0, 1]. Uses FTS5 BM25 ranking when available and
// degrades to a LIKE scan otherwise.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]catalogtype.ScoredChunk, error) {
	done := metrics.TimeOp("db_lexical_search")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", catalogtype.ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", catalogtype.ErrInvalidArgument)
	}

	var results []catalogtype.ScoredChunk
	var err error
	if s.LexicalSearchEnabled() {
		results, err = s.lexicalSearchFTS(ctx, query, limit)
	} else {
		results, err = s.lexicalSearchLike(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	success = true
	return results, nil
}

func (s *Store) lexicalSearchFTS(ctx context.Context, query string, limit int) ([]catalogtype.ScoredChunk, error) {
	match := ftsMatchExpr(query)
	if match == "" {
		return []catalogtype.ScoredChunk{}, nil
	}
	stmt, err := s.getPreparedStmt(ctx, `SELECT c.id, c.dataset, c.kind, c.content, c.keywords, bm25(fts_chunks) as rank
        FROM fts_chunks
        JOIN chunks c ON c.id = fts_chunks.id
        WHERE fts_chunks MATCH ?
        ORDER BY rank ASC
        LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer rows.Close()

	results := []catalogtype.ScoredChunk{}
	for rows.Next() {
		var c catalogtype.Chunk
		var dataset, keywords sql.NullString
		var rank float64
		if err := rows.Scan(&c.ID, &dataset, &c.Kind, &c.Content, &keywords, &rank); err != nil {
			log.Printf("Warning: Failed to scan FTS result row: %v", err)
			continue
		}
		c.Dataset = dataset.String
		decodeKeywords(keywords, &c)
		// BM25 rank is more negative for better matches.
		results = append(results, catalogtype.ScoredChunk{Chunk: c, Score: 1 / (1 + math.Abs(rank))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating FTS results: %w", err)
	}
	return results, nil
}

func (s *Store) lexicalSearchLike(ctx context.Context, query string, limit int) ([]catalogtype.ScoredChunk, error) {
	stmt, err := s.getPreparedStmt(ctx, `SELECT id, dataset, kind, content, keywords
        FROM chunks WHERE content LIKE ? OR keywords LIKE ?
        ORDER BY created_at DESC, id ASC
        LIMIT ?`)
	if err != nil {
		return nil, err
	}
	pattern := "%" + query + "%"
	rows, err := stmt.QueryContext(ctx, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute LIKE search: %w", err)
	}
	defer rows.Close()

	results := []catalogtype.ScoredChunk{}
	for rows.Next() {
		var c catalogtype.Chunk
		var dataset, keywords sql.NullString
		if err := rows.Scan(&c.ID, &dataset, &c.Kind, &c.Content, &keywords); err != nil {
			log.Printf("Warning: Failed to scan LIKE result row: %v", err)
			continue
		}
		c.Dataset = dataset.String
		decodeKeywords(keywords, &c)
		// No ranking signal; decay by position.
		results = append(results, catalogtype.ScoredChunk{Chunk: c, Score: 1 / (1 + float64(len(results)))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating LIKE results: %w", err)
	}
	return results, nil
}

// ftsMatchExpr turns free text into a safe FTS5 MATCH expression by
// quoting each token and OR-ing them together.
func ftsMatchExpr(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '_' || r == '-' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " OR ")
}
