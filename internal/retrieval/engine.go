// Package retrieval fuses vector similarity and lexical search over the
// indexed catalog chunks into one ranked result list.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/embeddings"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
)

// EmbeddingIndex is the vector search port the engine draws from.
type EmbeddingIndex interface {
	SimilaritySearch(ctx context.Context, embedding []float32, limit int) ([]catalogtype.ScoredChunk, error)
}

// LexicalIndex is the text search port the engine draws from.
type LexicalIndex interface {
	LexicalSearch(ctx context.Context, query string, limit int) ([]catalogtype.ScoredChunk, error)
}

// Engine ranks chunks for a query by combining both channels with a
// weighted sum. Either channel may be unavailable; the engine then ranks
// on the remaining one alone.
type Engine struct {
	vectors  EmbeddingIndex
	lexical  LexicalIndex
	provider embeddings.Provider

	semanticWeight float64
	lexicalWeight  float64
}

// NewEngine builds an engine with fusion weights taken from
// HYBRID_SEMANTIC_WEIGHT and HYBRID_LEXICAL_WEIGHT (defaults 0.7/0.3).
func NewEngine(vectors EmbeddingIndex, lexical LexicalIndex, provider embeddings.Provider) *Engine {
	wSem := envWeight("HYBRID_SEMANTIC_WEIGHT", 0.7)
	wLex := envWeight("HYBRID_LEXICAL_WEIGHT", 0.3)
	return &Engine{
		vectors:        vectors,
		lexical:        lexical,
		provider:       provider,
		semanticWeight: wSem,
		lexicalWeight:  wLex,
	}
}

func envWeight(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}

// Search returns up to topK chunks ranked by fused score, best first.
// Each channel is queried for 2*topK candidates so a document strong in
// one channel but absent from the other still has room to surface.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]catalogtype.RankedDocument, error) {
	done := metrics.TimeOp("retrieval_search")
	success := false
	defer func() { done(success) }()

	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", catalogtype.ErrInvalidArgument)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", catalogtype.ErrInvalidArgument)
	}
	fetch := 2 * topK

	var semantic []catalogtype.ScoredChunk
	if e.provider != nil && e.vectors != nil {
		vecs, err := e.provider.Embed(ctx, []string{query})
		if err != nil || len(vecs) != 1 {
			log.Printf("Warning: Failed to embed query, continuing lexical-only: %v", err)
		} else {
			semantic, err = e.vectors.SimilaritySearch(ctx, vecs[0], fetch)
			if err != nil {
				log.Printf("Warning: Similarity search failed, continuing lexical-only: %v", err)
				semantic = nil
			}
		}
	}

	var lexical []catalogtype.ScoredChunk
	if e.lexical != nil {
		var err error
		lexical, err = e.lexical.LexicalSearch(ctx, query, fetch)
		if err != nil {
			if len(semantic) == 0 {
				return nil, err
			}
			log.Printf("Warning: Lexical search failed, continuing semantic-only: %v", err)
			lexical = nil
		}
	}

	fused := e.fuse(semantic, lexical)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	success = true
	return fused, nil
}

// fuse merges the two candidate lists by chunk ID, keeping each
// channel's best score per chunk, and orders by weighted sum. Ties break
// by chunk ID so ranking stays deterministic.
func (e *Engine) fuse(semantic, lexical []catalogtype.ScoredChunk) []catalogtype.RankedDocument {
	byID := map[string]*catalogtype.RankedDocument{}
	order := []string{}

	for _, sc := range semantic {
		doc, ok := byID[sc.Chunk.ID]
		if !ok {
			doc = &catalogtype.RankedDocument{Chunk: sc.Chunk}
			byID[sc.Chunk.ID] = doc
			order = append(order, sc.Chunk.ID)
		}
		if sc.Score > doc.SemanticScore {
			doc.SemanticScore = sc.Score
		}
	}
	for _, sc := range lexical {
		doc, ok := byID[sc.Chunk.ID]
		if !ok {
			doc = &catalogtype.RankedDocument{Chunk: sc.Chunk}
			byID[sc.Chunk.ID] = doc
			order = append(order, sc.Chunk.ID)
		}
		if sc.Score > doc.LexicalScore {
			doc.LexicalScore = sc.Score
		}
	}

	docs := make([]catalogtype.RankedDocument, 0, len(order))
	for _, id := range order {
		doc := byID[id]
		doc.Score = e.semanticWeight*doc.SemanticScore + e.lexicalWeight*doc.LexicalScore
		docs = append(docs, *doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].Chunk.ID < docs[j].Chunk.ID
	})
	return docs
}
