package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	set := loadTestSchemas(t)
	gen, err := NewGenerator(set, testLogger())
	require.NoError(t, err)
	return gen
}

func TestReferencedTableFor(t *testing.T) {
	tests := []struct {
		colName string
		want    string
	}{
		{"ownerId", "businessEntities"},
		{"exporterId", "businessEntities"},
		{"importerId", "businessEntities"},
		{"creatorId", "businessEntities"},
		{"recipientId", "businessEntities"},
		{"mineSiteId", "mineSites"},
		{"exportCertificateId", "exportCertificates"},
		{"lotId", "lots"},
		// matching is case sensitive, the interior "Lot" never matches
		{"inputLotId", ""},
		{"lotNumberId", ""},
		{"governmentId", ""},
		{"licenseId", ""},
	}
	for _, tt := range tests {
		t.Run(tt.colName, func(t *testing.T) {
			assert.Equal(t, tt.want, referencedTableFor(tt.colName))
		})
	}
}

func TestGenerateSQLStructure(t *testing.T) {
	gen := newTestGenerator(t)
	sql := gen.GenerateSQL()

	assert.Contains(t, sql, "PRAGMA foreign_keys = ON;")

	// Every expected table is present.
	for _, table := range []string{
		"addresses", "contactDetails", "geolocalizations", "mineSiteLocations",
		"businessEntities", "mineSites", "exportCertificates", "lots",
		"licenses", "inspections", "tags", "taxes", "statusHistory",
		"mineSiteMinesLocations", "mineSiteMinerals", "lotCreatorRoles",
		"lotOriginatingOperations", "lotInputLots", "licenseCommodities",
		"lotTags", "lotTaxes",
	} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (", "table %s", table)
	}

	// Referenced tables come before the tables pointing at them.
	idxAddresses := strings.Index(sql, "CREATE TABLE IF NOT EXISTS addresses")
	idxEntities := strings.Index(sql, "CREATE TABLE IF NOT EXISTS businessEntities")
	idxMineSites := strings.Index(sql, "CREATE TABLE IF NOT EXISTS mineSites (")
	idxLots := strings.Index(sql, "CREATE TABLE IF NOT EXISTS lots (")
	assert.Less(t, idxAddresses, idxEntities)
	assert.Less(t, idxEntities, idxMineSites)
	assert.Less(t, idxMineSites, idxLots)
}

func TestGenerateSQLKeys(t *testing.T) {
	gen := newTestGenerator(t)
	sql := gen.GenerateSQL()

	assert.Contains(t, sql, "icglrId TEXT PRIMARY KEY")
	assert.Contains(t, sql, "lotNumber TEXT PRIMARY KEY")

	// Export certificates get a combined key column plus a natural-key
	// uniqueness constraint.
	assert.Contains(t, sql, "exportCertificateId TEXT PRIMARY KEY")
	assert.Contains(t, sql, "UNIQUE (identifier, issuingCountry)")

	// Tag columns on lots stay nullable even though the tag schema
	// requires them.
	for _, col := range []string{"tagIdentifier TEXT NULL", "tagIssueDate DATE NULL", "tagRepresentativeRMB TEXT NULL"} {
		assert.Contains(t, sql, col)
	}

	// Surrogate keys on schemas without a natural id.
	assert.Contains(t, sql, "id INTEGER PRIMARY KEY AUTOINCREMENT")
}

func TestGenerateSQLJunctions(t *testing.T) {
	gen := newTestGenerator(t)
	sql := gen.GenerateSQL()

	// minesLocations is discovered from the mine site schema's array of
	// geolocalization items.
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS mineSiteMinesLocations (")
	assert.Contains(t, sql, "FOREIGN KEY (mineSiteId) REFERENCES mineSites(icglrId)")
	assert.Contains(t, sql, "FOREIGN KEY (geolocalizationId) REFERENCES geolocalizations(id)")

	assert.Contains(t, sql, "roleCode INTEGER NOT NULL CHECK(roleCode BETWEEN 1 AND 8)")
	assert.Contains(t, sql, "operationCode INTEGER NOT NULL CHECK(operationCode BETWEEN 1 AND 8)")
}

func TestEmitTableForeignKeys(t *testing.T) {
	gen := newTestGenerator(t)

	lotSchema := gen.set.Get("chain-of-custody/lot.json")
	require.NotNil(t, lotSchema)

	table, ok := gen.EmitTable(lotSchema, "lots")
	require.True(t, ok)

	assert.Contains(t, table.SQL, "FOREIGN KEY (creatorId) REFERENCES businessEntities(identifier)")
	assert.Contains(t, table.SQL, "FOREIGN KEY (mineSiteId) REFERENCES mineSites(icglrId)")
	assert.Contains(t, table.SQL, "FOREIGN KEY (exportCertificateId) REFERENCES exportCertificates(exportCertificateId)")
}

func TestEnhanceStatusHistory(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dateOfChange": map[string]any{"type": "string", "format": "date"},
			"newStatus":    map[string]any{"type": "integer"},
		},
		"required": []any{"dateOfChange", "newStatus"},
	}

	enhanced := enhanceStatusHistory(schema)

	props, _ := enhanced["properties"].(map[string]any)
	assert.Contains(t, props, "mineSiteId")
	assert.Contains(t, stringSlice(enhanced["required"]), "mineSiteId")

	// The input schema is not mutated.
	origProps, _ := schema["properties"].(map[string]any)
	assert.NotContains(t, origProps, "mineSiteId")
	assert.Len(t, stringSlice(schema["required"]), 2)
}
