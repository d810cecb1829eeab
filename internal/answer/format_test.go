package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

func TestFormatSchema(t *testing.T) {
	minv := 0.0
	schema := &catalogtype.DatasetSchema{
		Dataset: catalogtype.Dataset{
			Name:         "Activity_BrushDisposal",
			DisplayName:  "Brush Disposal Activities",
			Kind:         catalogtype.KindSpatial,
			SourceSystem: "FACTS",
			RecordCount:  52871,
		},
		Attributes: []catalogtype.Attribute{
			{Label: "OBJECTID", DataType: "integer", PrimaryKey: true, Definition: "Internal feature number"},
			{
				Label: "GIS_ACRES", DataType: "double", Nullable: true,
				DomainValues: []catalogtype.DomainValue{
					catalogtype.RangeDomain{Min: &minv, Units: "acres"},
				},
			},
		},
	}

	got := formatSchema(schema)
	assert.Contains(t, got, "Dataset Activity_BrushDisposal (spatial) - Brush Disposal Activities")
	assert.Contains(t, got, "Source system: FACTS")
	assert.Contains(t, got, "Records: 52871")
	assert.Contains(t, got, "Fields (2):")
	assert.Contains(t, got, "- OBJECTID (integer) [primary key, not null]: Internal feature number")
	assert.Contains(t, got, "range min 0 acres")
}

func TestFormatDomainValue(t *testing.T) {
	assert.Equal(t, "domain: free text", formatDomainValue(catalogtype.UnrepresentableDomain{Description: "free text"}))
	assert.Equal(t, `allowed value "1111": Brush disposal burn`,
		formatDomainValue(catalogtype.EnumeratedDomain{Value: "1111", ValueDefinition: "Brush disposal burn"}))
	assert.Equal(t, "codeset NFS codes (USFS)",
		formatDomainValue(catalogtype.CodesetDomain{Name: "NFS codes", Source: "USFS"}))
}

func TestFormatLineageSourceField(t *testing.T) {
	got := formatLineage(&catalogtype.LineageResult{
		Dataset:       "Activity_BrushDisposal",
		Field:         "OBJECTID",
		IsSourceField: true,
		Downstream: []catalogtype.FieldLineageEdge{{
			TargetDataset: "ActivitySummary", TargetField: "SOURCE_ID",
			TransformationType: catalogtype.TransformDirectCopy,
			Confidence:         1.0, Verified: true,
		}},
	})
	assert.Contains(t, got, "This is a source field")
	assert.Contains(t, got, "ActivitySummary.SOURCE_ID via direct-copy (confidence 1.00, verified)")
}

func TestFormatRelationshipsEmpty(t *testing.T) {
	got := formatRelationships(&catalogtype.RelationshipResult{Dataset: "RoadsCore"})
	assert.Contains(t, got, "No recorded relationships.")
}
