// Package catalogtype holds the domain model of the metadata knowledge
// base: datasets, their attributes and domain constraints, lineage and
// relationship edges, retrievable chunks, and query intents.
package catalogtype

import (
	"strings"
	"time"
)

// Dataset describes one harvested dataset (a table, feature class, view,
// or raster). Identity is the short Name, unique across the catalog.
type Dataset struct {
	ID            int64             `json:"id,omitempty"`
	Name          string            `json:"name"`
	Label         string            `json:"label,omitempty"`
	DisplayName   string            `json:"displayName,omitempty"`
	Kind          string            `json:"kind"`
	SourceSystem  string            `json:"sourceSystem,omitempty"`
	SourceURL     string            `json:"sourceUrl,omitempty"`
	RecordCount   int64             `json:"recordCount,omitempty"`
	LastUpdatedAt *time.Time        `json:"lastUpdatedAt,omitempty"`
	Extras        map[string]string `json:"extras,omitempty"`
}

// Dataset kinds.
const (
	KindTabular = "tabular"
	KindSpatial = "spatial"
	KindRaster  = "raster"
	KindView    = "view"
)

// ShortName derives the catalog short name from a qualified label by
// taking the final dot-separated segment, e.g.
// "S_USA.Activity_BrushDisposal" -> "Activity_BrushDisposal".
func ShortName(label string) string {
	label = strings.TrimSpace(label)
	if i := strings.LastIndex(label, "."); i >= 0 {
		return label[i+1:]
	}
	return label
}

// Attribute describes one field of a Dataset. Identity is the
// (dataset, label) pair, unique within the dataset.
type Attribute struct {
	ID               int64            `json:"id,omitempty"`
	DatasetID        int64            `json:"datasetId,omitempty"`
	Label            string           `json:"label"`
	Definition       string           `json:"definition,omitempty"`
	DefinitionSource string           `json:"definitionSource,omitempty"`
	DataType         string           `json:"dataType,omitempty"`
	Nullable         bool             `json:"nullable"`
	PrimaryKey       bool             `json:"primaryKey"`
	ForeignKey       bool             `json:"foreignKey"`
	MaxLength        int              `json:"maxLength,omitempty"`
	Precision        int              `json:"precision,omitempty"`
	Scale            int              `json:"scale,omitempty"`
	DefaultValue     string           `json:"defaultValue,omitempty"`
	Quality          *QualitySnapshot `json:"quality,omitempty"`
	DomainValues     []DomainValue    `json:"domainValues,omitempty"`
}

// QualitySnapshot carries profiling results for an attribute.
type QualitySnapshot struct {
	CompletenessPercent float64    `json:"completenessPercent"`
	UniquenessPercent   float64    `json:"uniquenessPercent"`
	MinValue            string     `json:"minValue,omitempty"`
	MaxValue            string     `json:"maxValue,omitempty"`
	SampleValues        []string   `json:"sampleValues,omitempty"`
	LastProfiledAt      *time.Time `json:"lastProfiledAt,omitempty"`
}

// DatasetSchema is the full structured view of one dataset: the dataset
// row plus its attributes (primary keys first, then insertion order),
// each with its domain values in insertion order.
type DatasetSchema struct {
	Dataset    Dataset     `json:"dataset"`
	Attributes []Attribute `json:"attributes"`
}

// FieldLineageEdge is a directed "derived from" edge between two
// attributes, source -> target.
type FieldLineageEdge struct {
	SourceDataset       string  `json:"sourceDataset"`
	SourceField         string  `json:"sourceField"`
	TargetDataset       string  `json:"targetDataset"`
	TargetField         string  `json:"targetField"`
	TransformationType  string  `json:"transformationType"`
	TransformationLogic string  `json:"transformationLogic,omitempty"`
	Confidence          float64 `json:"confidence"`
	Verified            bool    `json:"verified"`
	Notes               string  `json:"notes,omitempty"`
}

// Transformation kinds for field lineage.
const (
	TransformDirectCopy    = "direct-copy"
	TransformCalculation   = "calculation"
	TransformAggregation   = "aggregation"
	TransformConcatenation = "concatenation"
)

// LineageResult is the single-hop lineage view of one field. Upstream
// edges feed into the field, downstream edges consume it. IsSourceField
// is true iff the upstream set is empty.
type LineageResult struct {
	Dataset       string             `json:"dataset"`
	Field         string             `json:"field"`
	Upstream      []FieldLineageEdge `json:"upstream"`
	Downstream    []FieldLineageEdge `json:"downstream"`
	IsSourceField bool               `json:"isSourceField"`
}

// RelationshipEdge is a directed reference between two (dataset, field)
// pairs, e.g. a foreign-key-like link.
type RelationshipEdge struct {
	SourceDataset    string `json:"sourceDataset"`
	SourceField      string `json:"sourceField"`
	TargetDataset    string `json:"targetDataset"`
	TargetField      string `json:"targetField"`
	RelationshipType string `json:"relationshipType"`
	Name             string `json:"name,omitempty"`
	Enforced         bool   `json:"enforced"`
	Cardinality      string `json:"cardinality,omitempty"`
}

// Relationship kinds.
const (
	RelOneToOne   = "one-to-one"
	RelOneToMany  = "one-to-many"
	RelManyToMany = "many-to-many"
)

// RelationshipResult groups the relationship edges touching one dataset
// by direction.
type RelationshipResult struct {
	Dataset  string             `json:"dataset"`
	Outgoing []RelationshipEdge `json:"outgoing"`
	Incoming []RelationshipEdge `json:"incoming"`
}

// Chunk is one retrievable unit of free text with a stable identifier.
// Keywords are indexed alongside the content for lexical search. The
// embedding is held by the index; the core never inspects it.
type Chunk struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Keywords  []string  `json:"keywords,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Chunk kinds.
const (
	ChunkSummary = "summary"
	ChunkSchema  = "schema"
	ChunkLineage = "lineage"
)

// ScoredChunk is a chunk paired with a sub-search score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RankedDocument is the hybrid retrieval output: a chunk with its fused
// score and the per-channel contributions that produced it.
type RankedDocument struct {
	Chunk         Chunk   `json:"chunk"`
	SemanticScore float64 `json:"semanticScore"`
	LexicalScore  float64 `json:"lexicalScore"`
	Score         float64 `json:"score"`
}

// EvidenceItem is one unit of grounding returned alongside an answer:
// either a structured fact block or a retrieved document.
type EvidenceItem struct {
	Kind    string  `json:"kind"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Evidence kinds.
const (
	EvidenceFacts    = "facts"
	EvidenceDocument = "document"
)

// Answer is the end-to-end result of one question.
type Answer struct {
	Question   string         `json:"question"`
	Intent     QueryIntent    `json:"intent"`
	AnswerText string         `json:"answerText"`
	Evidence   []EvidenceItem `json:"evidence"`
}

// DatasetSummary is the listing view of a dataset.
type DatasetSummary struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName,omitempty"`
	Kind         string `json:"kind"`
	SourceSystem string `json:"sourceSystem,omitempty"`
	RecordCount  int64  `json:"recordCount,omitempty"`
}
