package catalogtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestDomainValueValidation(t *testing.T) {
	cases := []struct {
		name    string
		dv      DomainValue
		wantErr bool
	}{
		{"unrepresentable ok", UnrepresentableDomain{Description: "free text ids"}, false},
		{"unrepresentable empty", UnrepresentableDomain{}, true},
		{"enumerated ok", EnumeratedDomain{Value: "BD", ValueDefinition: "Brush Disposal"}, false},
		{"enumerated no value", EnumeratedDomain{ValueDefinition: "x"}, true},
		{"enumerated no definition", EnumeratedDomain{Value: "BD"}, true},
		{"codeset ok", CodesetDomain{Name: "NFPORS activity codes", Source: "USFS"}, false},
		{"codeset no source", CodesetDomain{Name: "x"}, true},
		{"codeset no name", CodesetDomain{Source: "x"}, true},
		{"range ok", RangeDomain{Min: f64(0), Max: f64(100), Units: "acres"}, false},
		{"range open ended", RangeDomain{Min: f64(0)}, false},
		{"range unbounded", RangeDomain{}, false},
		{"range inverted", RangeDomain{Min: f64(10), Max: f64(1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.dv.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainValueSpecRoundTrip(t *testing.T) {
	values := []DomainValue{
		UnrepresentableDomain{Description: "anything"},
		EnumeratedDomain{Value: "1", ValueDefinition: "active", DefinitionSource: "handbook"},
		CodesetDomain{Name: "FIPS", Source: "census"},
		RangeDomain{Min: f64(0.5), Max: f64(9.5), Units: "meters"},
	}
	for _, dv := range values {
		spec := SpecFromDomainValue(dv)
		back, err := spec.ToDomainValue()
		require.NoError(t, err)
		assert.Equal(t, dv, back)
	}
}

func TestToDomainValueUnknownKind(t *testing.T) {
	_, err := DomainValueSpec{Kind: "mystery"}.ToDomainValue()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "Activity_BrushDisposal", ShortName("S_USA.Activity_BrushDisposal"))
	assert.Equal(t, "BrushDisposal", ShortName("BrushDisposal"))
	assert.Equal(t, "table", ShortName("db.schema.table"))
	assert.Equal(t, "", ShortName("  "))
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentSchema, ParseIntent("schema"))
	assert.Equal(t, IntentLineage, ParseIntent(" LINEAGE "))
	assert.Equal(t, IntentRelationships, ParseIntent("relationships"))
	assert.Equal(t, IntentQuality, ParseIntent("quality"))
	assert.Equal(t, IntentDiscovery, ParseIntent("discovery"))
	assert.Equal(t, IntentGeneral, ParseIntent("general"))
	assert.Equal(t, IntentGeneral, ParseIntent("???"))
	assert.Equal(t, IntentGeneral, ParseIntent(""))
}
