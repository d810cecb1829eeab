package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fsgeodata/catalog-kb-go/internal/answer"
	"github.com/fsgeodata/catalog-kb-go/internal/buildinfo"
	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/metrics"
	"github.com/fsgeodata/catalog-kb-go/internal/store"
)

// MCPServer exposes the metadata catalog over the MCP protocol.
type MCPServer struct {
	server    *mcp.Server
	store     *store.Store
	assembler *answer.Assembler
}

// NewMCPServer creates a new MCP server over the catalog store and
// answer assembler.
func NewMCPServer(st *store.Store, assembler *answer.Assembler) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "catalog-kb-go",
		Version: buildinfo.Version,
	}, nil)

	s := &MCPServer{
		server:    server,
		store:     st,
		assembler: assembler,
	}

	// initialize metrics from env (no-op if disabled)
	metrics.InitFromEnv()
	s.setupToolHandlers()
	return s
}

func mustSchema[T any](name string) *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "ask",
		Title:        "Ask the Catalog",
		Description:  "Answer a natural-language question about datasets, fields, lineage, or relationships.",
		InputSchema:  mustSchema[catalogtype.AskArgs]("AskArgs"),
		OutputSchema: mustSchema[catalogtype.AskResult]("AskResult"),
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_datasets",
		Title:        "List Datasets",
		Description:  "List catalog datasets, optionally filtered by kind or source system.",
		InputSchema:  mustSchema[catalogtype.ListDatasetsArgs]("ListDatasetsArgs"),
		OutputSchema: mustSchema[catalogtype.ListDatasetsResult]("ListDatasetsResult"),
	}, s.handleListDatasets)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_schema",
		Title:        "Get Schema",
		Description:  "Return the full schema of a dataset: attributes, constraints, and domain values.",
		InputSchema:  mustSchema[catalogtype.GetSchemaArgs]("GetSchemaArgs"),
		OutputSchema: mustSchema[catalogtype.GetSchemaResult]("GetSchemaResult"),
	}, s.handleGetSchema)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_field_lineage",
		Title:        "Get Field Lineage",
		Description:  "Trace where a field's values come from and where they flow to.",
		InputSchema:  mustSchema[catalogtype.GetFieldLineageArgs]("GetFieldLineageArgs"),
		OutputSchema: mustSchema[catalogtype.LineageResult]("LineageResult"),
	}, s.handleGetFieldLineage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_relationships",
		Title:        "Get Relationships",
		Description:  "List the reference edges touching a dataset, grouped by direction.",
		InputSchema:  mustSchema[catalogtype.GetRelationshipsArgs]("GetRelationshipsArgs"),
		OutputSchema: mustSchema[catalogtype.RelationshipResult]("RelationshipResult"),
	}, s.handleGetRelationships)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "upsert_dataset",
		Title:        "Upsert Dataset",
		Description:  "Create or update a dataset and its attributes.",
		InputSchema:  mustSchema[catalogtype.UpsertDatasetArgs]("UpsertDatasetArgs"),
		OutputSchema: mustSchema[catalogtype.UpsertDatasetResult]("UpsertDatasetResult"),
	}, s.handleUpsertDataset)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "add_field_lineage",
		Title:        "Add Field Lineage",
		Description:  "Record derived-from edges between existing fields.",
		InputSchema:  mustSchema[catalogtype.AddFieldLineageArgs]("AddFieldLineageArgs"),
		OutputSchema: mustSchema[catalogtype.AddFieldLineageResult]("AddFieldLineageResult"),
	}, s.handleAddFieldLineage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "add_relationship",
		Title:        "Add Relationship",
		Description:  "Record reference edges between existing fields.",
		InputSchema:  mustSchema[catalogtype.AddRelationshipArgs]("AddRelationshipArgs"),
		OutputSchema: mustSchema[catalogtype.AddRelationshipResult]("AddRelationshipResult"),
	}, s.handleAddRelationship)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "delete_dataset",
		Title:        "Delete Dataset",
		Description:  "Delete a dataset along with its attributes, domain values, edges, and chunks.",
		InputSchema:  mustSchema[catalogtype.DeleteDatasetArgs]("DeleteDatasetArgs"),
		OutputSchema: mustSchema[catalogtype.DeleteDatasetResult]("DeleteDatasetResult"),
	}, s.handleDeleteDataset)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "delete_relationship",
		Title:        "Delete Relationship",
		Description:  "Delete one relationship edge by its endpoint tuple.",
		InputSchema:  mustSchema[catalogtype.DeleteRelationshipArgs]("DeleteRelationshipArgs"),
		OutputSchema: mustSchema[catalogtype.DeleteRelationshipResult]("DeleteRelationshipResult"),
	}, s.handleDeleteRelationship)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "index_chunks",
		Title:        "Index Chunks",
		Description:  "Embed and index text chunks for retrieval.",
		InputSchema:  mustSchema[catalogtype.IndexChunksArgs]("IndexChunksArgs"),
		OutputSchema: mustSchema[catalogtype.IndexChunksResult]("IndexChunksResult"),
	}, s.handleIndexChunks)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server and configuration information.",
		InputSchema:  mustSchema[catalogtype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchema[catalogtype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

// handleAsk handles the ask tool call
func (s *MCPServer) handleAsk(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.AskArgs],
) (*mcp.CallToolResultFor[catalogtype.AskResult], error) {
	done := metrics.TimeTool("ask")
	var success bool
	defer func() { done(success) }()

	ans, err := s.assembler.Respond(ctx, params.Arguments.Question, params.Arguments.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.AskResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: ans.AnswerText},
		},
		StructuredContent: catalogtype.AskResult{
			Question: ans.Question,
			Intent:   string(ans.Intent),
			Answer:   ans.AnswerText,
			Evidence: ans.Evidence,
		},
	}, nil
}

// handleListDatasets handles the list_datasets tool call
func (s *MCPServer) handleListDatasets(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.ListDatasetsArgs],
) (*mcp.CallToolResultFor[catalogtype.ListDatasetsResult], error) {
	done := metrics.TimeTool("list_datasets")
	var success bool
	defer func() { done(success) }()

	datasets, err := s.store.ListDatasets(ctx, params.Arguments.Kind, params.Arguments.System, params.Arguments.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.ListDatasetsResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Found %d datasets", len(datasets))},
		},
		StructuredContent: catalogtype.ListDatasetsResult{Datasets: datasets},
	}, nil
}

// handleGetSchema handles the get_schema tool call
func (s *MCPServer) handleGetSchema(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.GetSchemaArgs],
) (*mcp.CallToolResultFor[catalogtype.GetSchemaResult], error) {
	done := metrics.TimeTool("get_schema")
	var success bool
	defer func() { done(success) }()

	schema, err := s.store.GetSchema(ctx, params.Arguments.Dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	success = true

	views := make([]catalogtype.AttributeView, 0, len(schema.Attributes))
	for _, a := range schema.Attributes {
		views = append(views, catalogtype.ViewFromAttribute(a))
	}
	return &mcp.CallToolResultFor[catalogtype.GetSchemaResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Schema for %s: %d attributes", schema.Dataset.Name, len(views))},
		},
		StructuredContent: catalogtype.GetSchemaResult{
			Dataset:    schema.Dataset,
			Attributes: views,
		},
	}, nil
}

// handleGetFieldLineage handles the get_field_lineage tool call
func (s *MCPServer) handleGetFieldLineage(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.GetFieldLineageArgs],
) (*mcp.CallToolResultFor[catalogtype.LineageResult], error) {
	done := metrics.TimeTool("get_field_lineage")
	var success bool
	defer func() { done(success) }()

	lineage, err := s.store.GetFieldLineage(ctx, params.Arguments.Dataset, params.Arguments.Field)
	if err != nil {
		return nil, fmt.Errorf("failed to get field lineage: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.LineageResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Lineage for %s.%s: %d upstream, %d downstream",
				lineage.Dataset, lineage.Field, len(lineage.Upstream), len(lineage.Downstream))},
		},
		StructuredContent: *lineage,
	}, nil
}

// handleGetRelationships handles the get_relationships tool call
func (s *MCPServer) handleGetRelationships(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.GetRelationshipsArgs],
) (*mcp.CallToolResultFor[catalogtype.RelationshipResult], error) {
	done := metrics.TimeTool("get_relationships")
	var success bool
	defer func() { done(success) }()

	rels, err := s.store.GetRelationships(ctx, params.Arguments.Dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationships: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.RelationshipResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Relationships for %s: %d outgoing, %d incoming",
				rels.Dataset, len(rels.Outgoing), len(rels.Incoming))},
		},
		StructuredContent: *rels,
	}, nil
}

// handleUpsertDataset handles the upsert_dataset tool call
func (s *MCPServer) handleUpsertDataset(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.UpsertDatasetArgs],
) (*mcp.CallToolResultFor[catalogtype.UpsertDatasetResult], error) {
	done := metrics.TimeTool("upsert_dataset")
	var success bool
	defer func() { done(success) }()

	attrs := make([]catalogtype.Attribute, 0, len(params.Arguments.Attributes))
	for _, in := range params.Arguments.Attributes {
		a := catalogtype.Attribute{
			Label:            in.Label,
			Definition:       in.Definition,
			DefinitionSource: in.DefinitionSource,
			DataType:         in.DataType,
			Nullable:         in.Nullable,
			PrimaryKey:       in.PrimaryKey,
			ForeignKey:       in.ForeignKey,
			MaxLength:        in.MaxLength,
			Precision:        in.Precision,
			Scale:            in.Scale,
			DefaultValue:     in.DefaultValue,
			Quality:          in.Quality,
		}
		for _, spec := range in.DomainValues {
			dv, err := spec.ToDomainValue()
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", in.Label, err)
			}
			a.DomainValues = append(a.DomainValues, dv)
		}
		attrs = append(attrs, a)
	}

	name, err := s.store.UpsertDataset(ctx, params.Arguments.Dataset, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert dataset: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.UpsertDatasetResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully upserted dataset %s with %d attributes", name, len(attrs))},
		},
		StructuredContent: catalogtype.UpsertDatasetResult{Name: name, Attributes: len(attrs)},
	}, nil
}

// handleAddFieldLineage handles the add_field_lineage tool call
func (s *MCPServer) handleAddFieldLineage(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.AddFieldLineageArgs],
) (*mcp.CallToolResultFor[catalogtype.AddFieldLineageResult], error) {
	done := metrics.TimeTool("add_field_lineage")
	var success bool
	defer func() { done(success) }()

	if err := s.store.AddFieldLineage(ctx, params.Arguments.Edges); err != nil {
		return nil, fmt.Errorf("failed to add field lineage: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.AddFieldLineageResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully recorded %d lineage edges", len(params.Arguments.Edges))},
		},
		StructuredContent: catalogtype.AddFieldLineageResult{Added: len(params.Arguments.Edges)},
	}, nil
}

// handleAddRelationship handles the add_relationship tool call
func (s *MCPServer) handleAddRelationship(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.AddRelationshipArgs],
) (*mcp.CallToolResultFor[catalogtype.AddRelationshipResult], error) {
	done := metrics.TimeTool("add_relationship")
	var success bool
	defer func() { done(success) }()

	if err := s.store.AddRelationships(ctx, params.Arguments.Edges); err != nil {
		return nil, fmt.Errorf("failed to add relationships: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.AddRelationshipResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully recorded %d relationship edges", len(params.Arguments.Edges))},
		},
		StructuredContent: catalogtype.AddRelationshipResult{Added: len(params.Arguments.Edges)},
	}, nil
}

// handleDeleteDataset handles the delete_dataset tool call
func (s *MCPServer) handleDeleteDataset(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.DeleteDatasetArgs],
) (*mcp.CallToolResultFor[catalogtype.DeleteDatasetResult], error) {
	done := metrics.TimeTool("delete_dataset")
	var success bool
	defer func() { done(success) }()

	if err := s.store.DeleteDataset(ctx, params.Arguments.Name); err != nil {
		return nil, fmt.Errorf("failed to delete dataset: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.DeleteDatasetResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully deleted dataset %s", params.Arguments.Name)},
		},
		StructuredContent: catalogtype.DeleteDatasetResult{Deleted: params.Arguments.Name},
	}, nil
}

// handleDeleteRelationship handles the delete_relationship tool call
func (s *MCPServer) handleDeleteRelationship(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.DeleteRelationshipArgs],
) (*mcp.CallToolResultFor[catalogtype.DeleteRelationshipResult], error) {
	done := metrics.TimeTool("delete_relationship")
	var success bool
	defer func() { done(success) }()

	if err := s.store.DeleteRelationship(ctx, params.Arguments.Edge); err != nil {
		return nil, fmt.Errorf("failed to delete relationship: %w", err)
	}
	success = true

	e := params.Arguments.Edge
	return &mcp.CallToolResultFor[catalogtype.DeleteRelationshipResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully deleted relationship %s.%s -> %s.%s",
				e.SourceDataset, e.SourceField, e.TargetDataset, e.TargetField)},
		},
		StructuredContent: catalogtype.DeleteRelationshipResult{Deleted: true},
	}, nil
}

// handleIndexChunks handles the index_chunks tool call
func (s *MCPServer) handleIndexChunks(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.IndexChunksArgs],
) (*mcp.CallToolResultFor[catalogtype.IndexChunksResult], error) {
	done := metrics.TimeTool("index_chunks")
	var success bool
	defer func() { done(success) }()

	ids, err := s.store.UpsertChunks(ctx, params.Arguments.Chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[catalogtype.IndexChunksResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Successfully indexed %d chunks", len(ids))},
		},
		StructuredContent: catalogtype.IndexChunksResult{Indexed: len(ids), IDs: ids},
	}, nil
}

// handleHealth handles the health_check tool call
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[catalogtype.HealthArgs],
) (*mcp.CallToolResultFor[catalogtype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()

	providerName := ""
	if p := s.store.Provider(); p != nil {
		providerName = p.Name()
	}
	datasets, chunks, err := s.store.Counts(ctx)
	if err != nil {
		log.Printf("Warning: Failed to count corpus rows for health check: %v", err)
	}

	return &mcp.CallToolResultFor[catalogtype.HealthResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "ok"},
		},
		StructuredContent: catalogtype.HealthResult{
			Name:          "catalog-kb-go",
			Version:       buildinfo.Version,
			Revision:      buildinfo.Revision,
			BuildDate:     buildinfo.BuildDate,
			Provider:      providerName,
			EmbeddingDims: s.store.EmbeddingDims(),
			VectorSearch:  s.store.VectorSearchEnabled(),
			LexicalSearch: s.store.LexicalSearchEnabled(),
			Datasets:      datasets,
			Chunks:        chunks,
		},
	}, nil
}

// Run starts the MCP server over stdio.
func (s *MCPServer) Run(ctx context.Context) error {
	s.reportPoolStats(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.reportPoolStats(ctx)
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("SSE MCP server listening on %s%s", addr, endpoint)
	return srv.ListenAndServe()
}

// reportPoolStats publishes connection pool gauges every few seconds
// until the context ends.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inUse, idle := s.store.PoolStats()
				metrics.Default().ObservePoolStats(inUse, idle)
			}
		}
	}()
}
