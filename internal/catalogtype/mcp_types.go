package catalogtype

// AskArgs represents the arguments for the ask tool
type AskArgs struct {
	Question string `json:"question" jsonschema:"The natural-language question about the catalog."`
	TopK     int    `json:"topK,omitempty" jsonschema:"Maximum number of retrieved documents to ground the answer on (default 5)."`
}

// AskResult is the structured answer payload.
type AskResult struct {
	Question string         `json:"question"`
	Intent   string         `json:"intent"`
	Answer   string         `json:"answer"`
	Evidence []EvidenceItem `json:"evidence"`
}

// ListDatasetsArgs represents the arguments for the list_datasets tool
type ListDatasetsArgs struct {
	Kind   string `json:"kind,omitempty" jsonschema:"Optional dataset kind filter (tabular, spatial, raster, view)."`
	System string `json:"system,omitempty" jsonschema:"Optional source system filter (e.g. FACTS)."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of datasets to return; 0 returns all."`
}

type ListDatasetsResult struct {
	Datasets []DatasetSummary `json:"datasets"`
}

// GetSchemaArgs represents the arguments for the get_schema tool
type GetSchemaArgs struct {
	Dataset string `json:"dataset" jsonschema:"The dataset name. Exact match wins; otherwise fuzzy matching is attempted."`
}

// AttributeView is the wire form of an Attribute, with domain values
// flattened to their tagged spec form.
type AttributeView struct {
	Label            string            `json:"label"`
	Definition       string            `json:"definition,omitempty"`
	DefinitionSource string            `json:"definitionSource,omitempty"`
	DataType         string            `json:"dataType,omitempty"`
	Nullable         bool              `json:"nullable"`
	PrimaryKey       bool              `json:"primaryKey"`
	ForeignKey       bool              `json:"foreignKey"`
	MaxLength        int               `json:"maxLength,omitempty"`
	Precision        int               `json:"precision,omitempty"`
	Scale            int               `json:"scale,omitempty"`
	DefaultValue     string            `json:"defaultValue,omitempty"`
	Quality          *QualitySnapshot  `json:"quality,omitempty"`
	DomainValues     []DomainValueSpec `json:"domainValues,omitempty"`
}

// ViewFromAttribute flattens an Attribute for transport.
func ViewFromAttribute(a Attribute) AttributeView {
	v := AttributeView{
		Label:            a.Label,
		Definition:       a.Definition,
		DefinitionSource: a.DefinitionSource,
		DataType:         a.DataType,
		Nullable:         a.Nullable,
		PrimaryKey:       a.PrimaryKey,
		ForeignKey:       a.ForeignKey,
		MaxLength:        a.MaxLength,
		Precision:        a.Precision,
		Scale:            a.Scale,
		DefaultValue:     a.DefaultValue,
		Quality:          a.Quality,
	}
	for _, dv := range a.DomainValues {
		v.DomainValues = append(v.DomainValues, SpecFromDomainValue(dv))
	}
	return v
}

type GetSchemaResult struct {
	Dataset    Dataset         `json:"dataset"`
	Attributes []AttributeView `json:"attributes"`
}

// GetFieldLineageArgs represents the arguments for the get_field_lineage tool
type GetFieldLineageArgs struct {
	Dataset string `json:"dataset" jsonschema:"The dataset owning the field."`
	Field   string `json:"field" jsonschema:"The field whose lineage to trace."`
}

// GetRelationshipsArgs represents the arguments for the get_relationships tool
type GetRelationshipsArgs struct {
	Dataset string `json:"dataset" jsonschema:"The dataset whose relationship edges to list."`
}

// UpsertDatasetArgs represents the arguments for the upsert_dataset tool
type UpsertDatasetArgs struct {
	Dataset    Dataset          `json:"dataset" jsonschema:"The dataset to create or update. Name may be omitted when Label is qualified."`
	Attributes []AttributeInput `json:"attributes,omitempty" jsonschema:"Attributes to upsert along with the dataset."`
}

// AttributeInput is the ingestion form of an attribute.
type AttributeInput struct {
	Label            string            `json:"label"`
	Definition       string            `json:"definition,omitempty"`
	DefinitionSource string            `json:"definitionSource,omitempty"`
	DataType         string            `json:"dataType,omitempty"`
	Nullable         bool              `json:"nullable,omitempty"`
	PrimaryKey       bool              `json:"primaryKey,omitempty"`
	ForeignKey       bool              `json:"foreignKey,omitempty"`
	MaxLength        int               `json:"maxLength,omitempty"`
	Precision        int               `json:"precision,omitempty"`
	Scale            int               `json:"scale,omitempty"`
	DefaultValue     string            `json:"defaultValue,omitempty"`
	Quality          *QualitySnapshot  `json:"quality,omitempty"`
	DomainValues     []DomainValueSpec `json:"domainValues,omitempty"`
}

type UpsertDatasetResult struct {
	Name       string `json:"name"`
	Attributes int    `json:"attributes"`
}

// AddFieldLineageArgs represents the arguments for the add_field_lineage tool
type AddFieldLineageArgs struct {
	Edges []FieldLineageEdge `json:"edges" jsonschema:"Lineage edges to record. Both endpoint fields must already exist."`
}

type AddFieldLineageResult struct {
	Added int `json:"added"`
}

// AddRelationshipArgs represents the arguments for the add_relationship tool
type AddRelationshipArgs struct {
	Edges []RelationshipEdge `json:"edges" jsonschema:"Relationship edges to record. Both endpoint fields must already exist."`
}

type AddRelationshipResult struct {
	Added int `json:"added"`
}

// DeleteDatasetArgs represents the arguments for the delete_dataset tool
type DeleteDatasetArgs struct {
	Name string `json:"name" jsonschema:"The exact dataset name to delete. Its attributes, domain values, edges, and chunks are removed with it."`
}

type DeleteDatasetResult struct {
	Deleted string `json:"deleted"`
}

// DeleteRelationshipArgs represents the arguments for the delete_relationship tool
type DeleteRelationshipArgs struct {
	Edge RelationshipEdge `json:"edge" jsonschema:"The endpoint tuple identifying the edge to delete."`
}

type DeleteRelationshipResult struct {
	Deleted bool `json:"deleted"`
}

// IndexChunksArgs represents the arguments for the index_chunks tool
type IndexChunksArgs struct {
	Chunks []Chunk `json:"chunks" jsonschema:"Text chunks to embed and index. IDs are generated when omitted."`
}

type IndexChunksResult struct {
	Indexed int      `json:"indexed"`
	IDs     []string `json:"ids"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Revision      string `json:"revision"`
	BuildDate     string `json:"buildDate"`
	Provider      string `json:"provider,omitempty"`
	EmbeddingDims int    `json:"embeddingDims"`
	VectorSearch  bool   `json:"vectorSearch"`
	LexicalSearch bool   `json:"lexicalSearch"`
	Datasets      int64  `json:"datasets"`
	Chunks        int64  `json:"chunks"`
}
