// Package catalog provides a library-first API for the metadata
// knowledge base without MCP transport.
package catalog

import (
	"context"

	"github.com/fsgeodata/catalog-kb-go/internal/answer"
	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/classifier"
	"github.com/fsgeodata/catalog-kb-go/internal/embeddings"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
	"github.com/fsgeodata/catalog-kb-go/internal/retrieval"
	"github.com/fsgeodata/catalog-kb-go/internal/store"
)

// Service wires the store, retrieval engine, classifier, and answer
// assembler behind one handle.
type Service struct {
	store     *store.Store
	engine    *retrieval.Engine
	assembler *answer.Assembler
}

// NewService constructs a Service with the provided config. Embedding
// and generation providers are taken from the environment.
func NewService(cfg *Config) (*Service, error) {
	provider := embeddings.NewFromEnv()
	st, err := store.New(cfg.toInternal(), provider)
	if err != nil {
		return nil, err
	}
	generator := generation.NewFromEnv()
	engine := retrieval.NewEngine(st, st, st.Provider())
	assembler := answer.New(st, engine, classifier.New(generator), generator)
	return &Service{store: st, engine: engine, assembler: assembler}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.store.Close() }

// Store exposes the underlying store for transport layers.
func (s *Service) Store() *store.Store { return s.store }

// Assembler exposes the answer assembler for transport layers.
func (s *Service) Assembler() *answer.Assembler { return s.assembler }

// Ask answers a natural-language question about the catalog.
func (s *Service) Ask(ctx context.Context, question string, topK int) (*catalogtype.Answer, error) {
	return s.assembler.Respond(ctx, question, topK)
}

// UpsertDataset creates or updates a dataset with its attributes.
func (s *Service) UpsertDataset(ctx context.Context, d catalogtype.Dataset, attrs []catalogtype.Attribute) (string, error) {
	return s.store.UpsertDataset(ctx, d, attrs)
}

// ListDatasets lists dataset summaries, optionally filtered by kind and
// source system. A positive limit caps the result.
func (s *Service) ListDatasets(ctx context.Context, kind, system string, limit int) ([]catalogtype.DatasetSummary, error) {
	return s.store.ListDatasets(ctx, kind, system, limit)
}

// GetSchema returns the full structured view of one dataset.
func (s *Service) GetSchema(ctx context.Context, name string) (*catalogtype.DatasetSchema, error) {
	return s.store.GetSchema(ctx, name)
}

// AddFieldLineage records derived-from edges between existing fields.
func (s *Service) AddFieldLineage(ctx context.Context, edges []catalogtype.FieldLineageEdge) error {
	return s.store.AddFieldLineage(ctx, edges)
}

// GetFieldLineage returns the single-hop lineage view of one field.
func (s *Service) GetFieldLineage(ctx context.Context, dataset, field string) (*catalogtype.LineageResult, error) {
	return s.store.GetFieldLineage(ctx, dataset, field)
}

// AddRelationships records reference edges between existing fields.
func (s *Service) AddRelationships(ctx context.Context, edges []catalogtype.RelationshipEdge) error {
	return s.store.AddRelationships(ctx, edges)
}

// DeleteDataset removes a dataset and everything hanging off it.
func (s *Service) DeleteDataset(ctx context.Context, name string) error {
	return s.store.DeleteDataset(ctx, name)
}

// DeleteRelationship removes one reference edge by its endpoint tuple.
func (s *Service) DeleteRelationship(ctx context.Context, edge catalogtype.RelationshipEdge) error {
	return s.store.DeleteRelationship(ctx, edge)
}

// GetRelationships returns the reference edges touching one dataset.
func (s *Service) GetRelationships(ctx context.Context, dataset string) (*catalogtype.RelationshipResult, error) {
	return s.store.GetRelationships(ctx, dataset)
}

// IndexChunks embeds and indexes text chunks for retrieval.
func (s *Service) IndexChunks(ctx context.Context, chunks []catalogtype.Chunk) ([]string, error) {
	return s.store.UpsertChunks(ctx, chunks)
}

// Search runs hybrid retrieval directly, without answer synthesis.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]catalogtype.RankedDocument, error) {
	return s.engine.Search(ctx, query, topK)
}
