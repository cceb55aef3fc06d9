package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) (*Classifier, *SchemaSet) {
	t.Helper()
	set := loadTestSchemas(t)
	cls, err := NewClassifier(set.Common())
	require.NoError(t, err)
	return cls, set
}

func TestClassifierStructuralMatch(t *testing.T) {
	cls, set := newTestClassifier(t)

	tests := []struct {
		name       string
		definition string
		wantEntity string
		wantTable  string
	}{
		{"address shape", "Address", "address", "addresses"},
		{"business entity shape", "BusinessEntity", "businessentity", "businessEntities"},
		{"contact details shape", "ContactDetails", "contactdetails", "contactDetails"},
		{"geolocalization shape", "Geolocalization", "geolocalization", "geolocalizations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := set.Definition(tt.definition)
			require.NotNil(t, def)

			// Property name is irrelevant for structural matches.
			ref, ok := cls.Classify("somethingElse", def)
			require.True(t, ok)
			assert.Equal(t, tt.wantEntity, ref.EntityName)
			assert.Equal(t, tt.wantTable, ref.TableName)
		})
	}
}

func TestClassifierNameHeuristics(t *testing.T) {
	cls, _ := newTestClassifier(t)

	// An object shape that matches none of the entity signatures.
	unknown := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"foo": map[string]any{"type": "string"},
		},
	}

	tests := []struct {
		propName  string
		wantTable string
		wantMatch bool
	}{
		{"legalAddress", "addresses", true},
		{"physicalAddress", "addresses", true},
		{"shippingAddress", "addresses", true},
		{"contactDetails", "contactDetails", true},
		{"ownerContactDetails", "contactDetails", true},
		{"geolocalization", "geolocalizations", true},
		{"siteGeolocalization", "geolocalizations", true},
		{"localGeographicDesignation", "addresses", true},
		{"polygon", "", false},
		{"mineSiteLocation", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.propName, func(t *testing.T) {
			ref, ok := cls.Classify(tt.propName, unknown)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantTable, ref.TableName)
			}
		})
	}
}

func TestClassifierRejectsScalars(t *testing.T) {
	cls, _ := newTestClassifier(t)

	_, ok := cls.Classify("legalAddress", map[string]any{"type": "string"})
	assert.False(t, ok)

	_, ok = cls.Classify("legalAddress", nil)
	assert.False(t, ok)
}

func TestNewClassifierAmbiguousSignatures(t *testing.T) {
	common := map[string]any{
		"definitions": map[string]any{
			"Address": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "string"},
				},
			},
			"ContactDetails": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "string"},
				},
			},
		},
	}
	_, err := NewClassifier(common)
	assert.Error(t, err)
}
