package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

var testDBCounter atomic.Int64

func setupTestStore(t *testing.T) (*Store, func()) {
	config := NewConfig()
	// Use an in-memory database for testing. The `cache=shared` is
	// crucial for sharing the connection across different calls to
	// `sql.Open` within the same process; the counter keeps tests
	// isolated from each other.
	config.URL = fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	config.EmbeddingDims = 4
	s, err := New(config, nil)
	require.NoError(t, err)

	cleanup := func() {
		err := s.Close()
		assert.NoError(t, err)
	}

	return s, cleanup
}

func brushDisposalAttrs() []catalogtype.Attribute {
	return []catalogtype.Attribute{
		{
			Label:      "SUID",
			DataType:   "string",
			Definition: "Spatial unit identifier",
		},
		{
			Label:      "OBJECTID",
			DataType:   "integer",
			Definition: "Internal feature number",
			PrimaryKey: true,
			Nullable:   false,
		},
		{
			Label:      "ACTIVITY_CODE",
			DataType:   "string",
			Definition: "Activity performed on the unit",
			DomainValues: []catalogtype.DomainValue{
				catalogtype.EnumeratedDomain{Value: "1111", ValueDefinition: "Brush disposal burn"},
				catalogtype.CodesetDomain{Name: "FACTS activity codes", Source: "USFS FACTS"},
			},
		},
		{
			Label:      "GIS_ACRES",
			DataType:   "double",
			Definition: "Calculated acreage",
			DomainValues: []catalogtype.DomainValue{
				catalogtype.RangeDomain{Min: f64p(0), Units: "acres"},
			},
		},
	}
}

func f64p(v float64) *float64 { return &v }

func seedBrushDisposal(t *testing.T, s *Store) string {
	name, err := s.UpsertDataset(context.Background(), catalogtype.Dataset{
		Label:        "S_USA.Activity_BrushDisposal",
		DisplayName:  "Brush Disposal Activities",
		Kind:         catalogtype.KindSpatial,
		SourceSystem: "FACTS",
		RecordCount:  52871,
	}, brushDisposalAttrs())
	require.NoError(t, err)
	return name
}

func TestUpsertDatasetDerivesShortName(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	name := seedBrushDisposal(t, s)
	assert.Equal(t, "Activity_BrushDisposal", name)

	d, err := s.FindDataset(context.Background(), "Activity_BrushDisposal")
	require.NoError(t, err)
	assert.Equal(t, "S_USA.Activity_BrushDisposal", d.Label)
	assert.Equal(t, catalogtype.KindSpatial, d.Kind)
	assert.Equal(t, int64(52871), d.RecordCount)
}

func TestUpsertDatasetValidation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertDataset(ctx, catalogtype.Dataset{}, nil)
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	_, err = s.UpsertDataset(ctx, catalogtype.Dataset{Name: "bad", RecordCount: -1}, nil)
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	_, err = s.UpsertDataset(ctx, catalogtype.Dataset{Name: "bad"}, []catalogtype.Attribute{{Label: " "}})
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	_, err = s.UpsertDataset(ctx, catalogtype.Dataset{Name: "bad"}, []catalogtype.Attribute{{
		Label:        "f",
		DomainValues: []catalogtype.DomainValue{catalogtype.RangeDomain{Min: f64p(5), Max: f64p(1)}},
	}})
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	// Nothing partial should have been written.
	_, err = s.FindDataset(ctx, "bad")
	assert.ErrorIs(t, err, catalogtype.ErrNotFound)
}

func TestUpsertDatasetIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedBrushDisposal(t, s)
	// Second upsert overwrites instead of duplicating.
	name, err := s.UpsertDataset(ctx, catalogtype.Dataset{
		Name:        "Activity_BrushDisposal",
		Kind:        catalogtype.KindSpatial,
		RecordCount: 60000,
	}, []catalogtype.Attribute{{
		Label:      "OBJECTID",
		DataType:   "integer",
		Definition: "Renumbered feature id",
		PrimaryKey: true,
	}})
	require.NoError(t, err)
	assert.Equal(t, "Activity_BrushDisposal", name)

	schema, err := s.GetSchema(ctx, "Activity_BrushDisposal")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), schema.Dataset.RecordCount)
	// Attributes from the first upsert survive; OBJECTID was updated.
	require.Len(t, schema.Attributes, 4)
	assert.Equal(t, "OBJECTID", schema.Attributes[0].Label)
	assert.Equal(t, "Renumbered feature id", schema.Attributes[0].Definition)

	summaries, err := s.ListDatasets(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestGetSchemaOrdersPrimaryKeysFirst(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	seedBrushDisposal(t, s)
	schema, err := s.GetSchema(context.Background(), "Activity_BrushDisposal")
	require.NoError(t, err)

	require.Len(t, schema.Attributes, 4)
	assert.Equal(t, "OBJECTID", schema.Attributes[0].Label)
	assert.True(t, schema.Attributes[0].PrimaryKey)
	// Remaining attributes keep insertion order.
	assert.Equal(t, "SUID", schema.Attributes[1].Label)
	assert.Equal(t, "ACTIVITY_CODE", schema.Attributes[2].Label)
	assert.Equal(t, "GIS_ACRES", schema.Attributes[3].Label)

	// Domain values surface in insertion order with their variants.
	dvs := schema.Attributes[2].DomainValues
	require.Len(t, dvs, 2)
	enum, ok := dvs[0].(catalogtype.EnumeratedDomain)
	require.True(t, ok)
	assert.Equal(t, "1111", enum.Value)
	codeset, ok := dvs[1].(catalogtype.CodesetDomain)
	require.True(t, ok)
	assert.Equal(t, "FACTS activity codes", codeset.Name)
}

func TestFindDatasetIsCaseInsensitive(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	seedBrushDisposal(t, s)
	d, err := s.FindDataset(context.Background(), "activity_brushdisposal")
	require.NoError(t, err)
	assert.Equal(t, "Activity_BrushDisposal", d.Name)
}

func TestResolveDatasetFuzzy(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedBrushDisposal(t, s)
	_, err := s.UpsertDataset(ctx, catalogtype.Dataset{Name: "Activity_TimberHarvest", Kind: catalogtype.KindSpatial}, nil)
	require.NoError(t, err)

	// Misspelled and partial names resolve to the closest dataset.
	d, err := s.ResolveDataset(ctx, "BrushDisposal")
	require.NoError(t, err)
	assert.Equal(t, "Activity_BrushDisposal", d.Name)

	d, err = s.ResolveDataset(ctx, "Activity_BrushDisposl")
	require.NoError(t, err)
	assert.Equal(t, "Activity_BrushDisposal", d.Name)

	// Display names are matched too.
	d, err = s.ResolveDataset(ctx, "Brush Disposal Activities")
	require.NoError(t, err)
	assert.Equal(t, "Activity_BrushDisposal", d.Name)

	// Exact match always wins over fuzzy candidates.
	d, err = s.ResolveDataset(ctx, "activity_timberharvest")
	require.NoError(t, err)
	assert.Equal(t, "Activity_TimberHarvest", d.Name)

	// Garbage stays unresolved.
	_, err = s.ResolveDataset(ctx, "zzzzqqqq")
	assert.ErrorIs(t, err, catalogtype.ErrNotFound)
}

func TestListDatasetsFilters(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedBrushDisposal(t, s)
	_, err := s.UpsertDataset(ctx, catalogtype.Dataset{Name: "ActivitySummary", Kind: catalogtype.KindTabular}, nil)
	require.NoError(t, err)

	all, err := s.ListDatasets(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	spatial, err := s.ListDatasets(ctx, catalogtype.KindSpatial, "", 0)
	require.NoError(t, err)
	require.Len(t, spatial, 1)
	assert.Equal(t, "Activity_BrushDisposal", spatial[0].Name)

	raster, err := s.ListDatasets(ctx, catalogtype.KindRaster, "", 0)
	require.NoError(t, err)
	assert.Empty(t, raster)

	facts, err := s.ListDatasets(ctx, "", "FACTS", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Activity_BrushDisposal", facts[0].Name)

	// Filters combine; a mismatched pair yields nothing.
	none, err := s.ListDatasets(ctx, catalogtype.KindTabular, "FACTS", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := s.ListDatasets(ctx, "", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "ActivitySummary", limited[0].Name)
}

func TestDeleteDatasetCascades(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	seedLineageFixtures(t, s)

	require.NoError(t, s.AddFieldLineage(ctx, []catalogtype.FieldLineageEdge{{
		SourceDataset: "Activity_BrushDisposal", SourceField: "OBJECTID",
		TargetDataset: "ActivitySummary", TargetField: "SOURCE_ID",
		TransformationType: catalogtype.TransformDirectCopy,
	}}))
	require.NoError(t, s.AddRelationships(ctx, []catalogtype.RelationshipEdge{{
		SourceDataset: "ActivitySummary", SourceField: "SOURCE_ID",
		TargetDataset: "Activity_BrushDisposal", TargetField: "OBJECTID",
		RelationshipType: catalogtype.RelOneToMany,
	}}))
	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{{
		ID: "brush-doc", Dataset: "Activity_BrushDisposal",
		Content: "Brush disposal treatment summary.",
	}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDataset(ctx, "Activity_BrushDisposal"))

	_, err = s.FindDataset(ctx, "Activity_BrushDisposal")
	assert.ErrorIs(t, err, catalogtype.ErrNotFound)

	// Edges touching the dataset are gone from both directions.
	rels, err := s.GetRelationships(ctx, "ActivitySummary")
	require.NoError(t, err)
	assert.Empty(t, rels.Outgoing)
	assert.Empty(t, rels.Incoming)

	lin, err := s.GetFieldLineage(ctx, "ActivitySummary", "SOURCE_ID")
	require.NoError(t, err)
	assert.True(t, lin.IsSourceField)
	assert.Empty(t, lin.Upstream)

	// The dataset's chunks left the lexical index too.
	results, err := s.LexicalSearch(ctx, "disposal", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	err = s.DeleteDataset(ctx, "Activity_BrushDisposal")
	assert.ErrorIs(t, err, catalogtype.ErrNotFound)
}

func TestQualitySnapshotRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertDataset(ctx, catalogtype.Dataset{Name: "Profiled", Kind: catalogtype.KindTabular},
		[]catalogtype.Attribute{{
			Label: "STATE_CODE",
			Quality: &catalogtype.QualitySnapshot{
				CompletenessPercent: 99.2,
				UniquenessPercent:   0.4,
				MinValue:            "01",
				MaxValue:            "56",
				SampleValues:        []string{"06", "41", "53"},
			},
		}})
	require.NoError(t, err)

	schema, err := s.GetSchema(ctx, "Profiled")
	require.NoError(t, err)
	require.Len(t, schema.Attributes, 1)
	q := schema.Attributes[0].Quality
	require.NotNil(t, q)
	assert.Equal(t, 99.2, q.CompletenessPercent)
	assert.Equal(t, []string{"06", "41", "53"}, q.SampleValues)
}
