package internal

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

// tableOrder fixes the CREATE TABLE sequence so that referenced tables are
// always created before the tables pointing at them.
var tableOrder = []string{
	"addresses",
	"contactDetails",
	"geolocalizations",
	"mineSiteLocations",
	"businessEntities",
	"mineSites",
	"exportCertificates",
	"lots",
	"licenses",
	"inspections",
	"tags",
	"taxes",
	"statusHistory",
}

// primaryKeys maps each generated table to its natural key column.
// Export certificates are identified by (issuingCountry, identifier); the
// combined exportCertificateId column exists so other tables can reference
// a single FK column.
var primaryKeys = map[string]string{
	"mineSites":          "icglrId",
	"businessEntities":   "identifier",
	"lots":               "lotNumber",
	"tags":               "identifier",
	"inspections":        "inspectionId",
	"exportCertificates": "exportCertificateId",
	"licenses":           "id",
	"taxes":              "id",
	"statusHistory":      "id",
}

// refColumns maps a referenced table to the column its foreign keys point at.
var refColumns = map[string]string{
	"businessEntities":   "identifier",
	"mineSites":          "icglrId",
	"lots":               "lotNumber",
	"tags":               "identifier",
	"inspections":        "inspectionId",
	"exportCertificates": "exportCertificateId",
}

// lotTagColumns are forced nullable in the lots table. A tag is only
// required when the originating operation is Production, which cannot be
// enforced at the column level.
var lotTagColumns = map[string]bool{
	"tagIdentifier":        true,
	"tagIssuerId":          true,
	"tagIssueDate":         true,
	"tagIssueTime":         true,
	"tagRepresentativeRMB": true,
	"tagTagType":           true,
}

// surrogateKeyTables get an autoincrement id prepended when the schema
// itself does not produce one.
var surrogateKeyTables = map[string]bool{
	"licenses":      true,
	"taxes":         true,
	"statusHistory": true,
}

func primaryKeyFor(tableName string) string {
	return primaryKeys[tableName]
}

func refColumnFor(table, fallback string) string {
	if col, ok := refColumns[table]; ok {
		return col
	}
	return fallback
}

// referencedTableFor infers the target table of an identifier-shaped column
// from its name.
func referencedTableFor(colName string) string {
	switch {
	case strings.Contains(colName, "owner"),
		strings.Contains(colName, "exporter"),
		strings.Contains(colName, "importer"),
		strings.Contains(colName, "creator"),
		strings.Contains(colName, "recipient"):
		return "businessEntities"
	case strings.Contains(colName, "mineSite"):
		return "mineSites"
	case strings.Contains(colName, "lot") && !strings.Contains(colName, "lotNumber"):
		return "lots"
	case strings.Contains(colName, "exportCertificate"):
		return "exportCertificates"
	}
	return ""
}

// Generator turns a loaded schema set into SQLite DDL.
type Generator struct {
	set *SchemaSet
	cls *Classifier
	log *zap.SugaredLogger

	junctions []mindata.Junction
}

func NewGenerator(set *SchemaSet, log *zap.SugaredLogger) (*Generator, error) {
	common := set.Common()
	if common == nil {
		return nil, fmt.Errorf("schema set has no common definitions document")
	}
	cls, err := NewClassifier(common)
	if err != nil {
		return nil, err
	}
	return &Generator{set: set, cls: cls, log: log}, nil
}

// EmitTable generates the CREATE TABLE statement for a top-level schema.
func (g *Generator) EmitTable(schema map[string]any, tableName string) (mindata.Table, bool) {
	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return mindata.Table{}, false
	}

	required := stringSlice(schema["required"])
	flattened := flattenProperties(properties, "", required, g.set, g.cls)

	primaryKey := primaryKeyFor(tableName)

	var columnDefs []string
	var foreignKeys []string
	hasIDColumn := false

	for _, col := range flattened {
		if col.Name == "id" {
			hasIDColumn = true
		}

		def := col.Name + " " + col.SQLType

		isTagField := tableName == "lots" && lotTagColumns[col.Name]

		switch {
		case col.Name == primaryKey:
			def += " PRIMARY KEY"
		case !col.Required || isTagField:
			def += " NULL"
		default:
			def += " NOT NULL"
		}

		columnDefs = append(columnDefs, def)

		if col.IsReference && col.ReferenceTable != "" {
			refCol := refColumnFor(col.ReferenceTable, "id")
			foreignKeys = append(foreignKeys,
				fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", col.Name, col.ReferenceTable, refCol))
		} else if strings.HasSuffix(col.Name, "Identifier") ||
			(strings.HasSuffix(col.Name, "Id") && col.Name != "icglrId") {
			if refTable := referencedTableFor(col.Name); refTable != "" {
				refCol := refColumnFor(refTable, "identifier")
				foreignKeys = append(foreignKeys,
					fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", col.Name, refTable, refCol))
			}
		}
	}

	if tableName == "exportCertificates" {
		// Populated by application code as issuingCountry + ":" + identifier.
		// A generated column cannot be a PRIMARY KEY on all SQLite builds.
		columnDefs = append([]string{"exportCertificateId TEXT PRIMARY KEY"}, columnDefs...)
		columnDefs = append(columnDefs, "UNIQUE (identifier, issuingCountry)")
	}

	if surrogateKeyTables[tableName] && !hasIDColumn {
		columnDefs = append([]string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}, columnDefs...)
	}

	all := append(columnDefs, foreignKeys...)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", tableName)
	for i, def := range all {
		b.WriteString("  " + def)
		if i < len(all)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return mindata.Table{TableName: tableName, SQL: b.String()}, true
}

// emitEntityTable generates a table from a common definition. Entity tables
// carry a surrogate id and do not recurse into nested objects.
func (g *Generator) emitEntityTable(schema map[string]any, tableName string) (mindata.Table, bool) {
	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return mindata.Table{}, false
	}

	required := stringSlice(schema["required"])
	common := g.set.Common()

	var columnDefs []string
	var foreignKeys []string

	for _, propName := range sortedKeys(properties) {
		propSchema, _ := properties[propName].(map[string]any)
		if propSchema == nil {
			continue
		}
		resolved := resolveSchema(propSchema, g.set, common)
		isRequired := containsString(required, propName)

		if ref, ok := g.cls.Classify(propName, resolved); ok {
			refColumnName := camelCase(propName) + "Id"
			refType := "INTEGER"
			refCol := "id"
			if ref.TableName == "businessEntities" {
				refType = "TEXT"
				refCol = "identifier"
			}
			nullability := "NULL"
			if isRequired {
				nullability = "NOT NULL"
			}
			columnDefs = append(columnDefs, fmt.Sprintf("%s %s %s", refColumnName, refType, nullability))
			foreignKeys = append(foreignKeys,
				fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", refColumnName, ref.TableName, refCol))
			continue
		}

		sqlType := sqlTypeFor(resolved, propName)
		if sqlType == "" {
			continue
		}

		def := camelCase(propName) + " " + sqlType
		if isRequired {
			def += " NOT NULL"
		} else {
			def += " NULL"
		}
		columnDefs = append(columnDefs, def)
	}

	columnDefs = append([]string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}, columnDefs...)
	columnDefs = append(columnDefs, foreignKeys...)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", tableName)
	for i, def := range columnDefs {
		b.WriteString("  " + def)
		if i < len(columnDefs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return mindata.Table{TableName: tableName, SQL: b.String()}, true
}

// entityTables builds addresses, contactDetails, geolocalizations and
// mineSiteLocations. They come first in the DDL since everything else
// references them.
func (g *Generator) entityTables() []mindata.Table {
	var tables []mindata.Table

	common := g.set.Common()
	if common == nil {
		return tables
	}

	if def := g.set.Definition("Address"); def != nil {
		if t, ok := g.emitEntityTable(def, "addresses"); ok {
			tables = append(tables, t)
		}
	}
	if def := g.set.Definition("ContactDetails"); def != nil {
		if t, ok := g.emitEntityTable(def, "contactDetails"); ok {
			tables = append(tables, t)
		}
	}
	if def := g.set.Definition("Geolocalization"); def != nil {
		if t, ok := g.emitEntityTable(def, "geolocalizations"); ok {
			tables = append(tables, t)
		}
	}
	if schema := g.set.FindByKeySubstring("mine-site-location.json"); schema != nil {
		if t, ok := g.emitEntityTable(schema, "mineSiteLocations"); ok {
			tables = append(tables, t)
		}
	}

	return tables
}

// mainTables generates the top-level schema tables and records any junction
// tables discovered from array properties.
func (g *Generator) mainTables() []mindata.Table {
	var tables []mindata.Table
	g.junctions = nil

	if schema := g.set.FindByKeySubstring("mine-site.json", "license", "inspection", "location", "status-history"); schema != nil {
		if t, ok := g.EmitTable(schema, "mineSites"); ok {
			tables = append(tables, t)
			g.discoverMinesLocations(schema)
		}
	} else if g.log != nil {
		g.log.Warnw("mine site schema not found, skipping table")
	}

	if schema := g.set.FindByKeySubstring("export-certificate.json"); schema != nil {
		if t, ok := g.EmitTable(schema, "exportCertificates"); ok {
			tables = append(tables, t)
		}
	}

	lotSchema := g.set.FindByKeySubstring("chain-of-custody/lot.json")
	if lotSchema == nil {
		lotSchema = g.set.FindByKeySubstring("lot.json", "input")
	}
	if lotSchema != nil {
		if t, ok := g.EmitTable(lotSchema, "lots"); ok {
			tables = append(tables, t)
		}
	}

	if def := g.set.Definition("BusinessEntity"); def != nil {
		if t, ok := g.EmitTable(def, "businessEntities"); ok {
			tables = append(tables, t)
		}
	}

	if schema := g.set.FindByKeySubstring("license.json"); schema != nil {
		if t, ok := g.EmitTable(schema, "licenses"); ok {
			tables = append(tables, t)
		}
	}
	if schema := g.set.FindByKeySubstring("inspection.json"); schema != nil {
		if t, ok := g.EmitTable(schema, "inspections"); ok {
			tables = append(tables, t)
		}
	}
	if schema := g.set.FindByKeySubstring("tag.json"); schema != nil {
		if t, ok := g.EmitTable(schema, "tags"); ok {
			tables = append(tables, t)
		}
	}
	if schema := g.set.FindByKeySubstring("tax.json"); schema != nil {
		if t, ok := g.EmitTable(schema, "taxes"); ok {
			tables = append(tables, t)
		}
	}

	if schema := g.set.FindByKeySubstring("status-history.json"); schema != nil {
		if t, ok := g.EmitTable(enhanceStatusHistory(schema), "statusHistory"); ok {
			tables = append(tables, t)
		}
	}

	return tables
}

// enhanceStatusHistory adds the mineSiteId FK column that the standalone
// schema does not carry.
func enhanceStatusHistory(schema map[string]any) map[string]any {
	enhanced := make(map[string]any, len(schema))
	for k, v := range schema {
		enhanced[k] = v
	}

	origProps, _ := schema["properties"].(map[string]any)
	props := make(map[string]any, len(origProps)+1)
	for k, v := range origProps {
		props[k] = v
	}
	props["mineSiteId"] = map[string]any{
		"type":        "string",
		"description": "Reference to mine site ICGLR ID",
	}
	enhanced["properties"] = props

	required := stringSlice(schema["required"])
	enhanced["required"] = toAnySlice(append(required, "mineSiteId"))

	return enhanced
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// discoverMinesLocations registers the mineSites-to-geolocalizations
// junction when the mine site schema carries a minesLocations array of
// Geolocalization items.
func (g *Generator) discoverMinesLocations(mineSiteSchema map[string]any) {
	properties, _ := mineSiteSchema["properties"].(map[string]any)
	prop, _ := properties["minesLocations"].(map[string]any)
	if prop == nil {
		return
	}
	typ, _ := prop["type"].(string)
	items, _ := prop["items"].(map[string]any)
	if typ != "array" || items == nil {
		return
	}

	common := g.set.Common()
	resolved := items
	if ref, _ := items["$ref"].(string); ref != "" {
		if strings.Contains(ref, "Geolocalization") {
			if def := g.set.Definition("Geolocalization"); def != nil {
				resolved = def
			} else if r := resolveSchema(items, g.set, common); r != nil {
				resolved = r
			}
		} else if r := resolveSchema(items, g.set, common); r != nil {
			resolved = r
		}
	}

	isGeo := false
	if ref, ok := g.cls.Classify("minesLocations", resolved); ok && ref.EntityName == "geolocalization" {
		isGeo = true
	} else if props, _ := resolved["properties"].(map[string]any); props != nil {
		_, hasLat := props["lat"]
		_, hasLong := props["long"]
		isGeo = hasLat && hasLong
	}
	if !isGeo {
		return
	}

	g.junctions = append(g.junctions, mindata.Junction{
		TableName:     "mineSiteMinesLocations",
		ParentTable:   "mineSites",
		ParentKey:     "mineSiteId",
		ParentKeyType: "TEXT",
		ChildTable:    "geolocalizations",
		ChildKey:      "geolocalizationId",
		ChildKeyType:  "INTEGER",
	})
}

// GenerateSQL produces the complete DDL script.
func (g *Generator) GenerateSQL() string {
	var b strings.Builder

	fmt.Fprintf(&b, `-- Mineral Data Interoperability Standard Database Schema
-- Auto-generated from JSON schemas
-- Generated: %s

PRAGMA foreign_keys = ON;

`, time.Now().UTC().Format(time.RFC3339))

	for _, t := range g.entityTables() {
		fmt.Fprintf(&b, "-- %s\n%s\n\n", t.TableName, t.SQL)
	}

	mainTables := g.mainTables()
	byName := make(map[string]mindata.Table, len(mainTables))
	for _, t := range mainTables {
		byName[t.TableName] = t
	}

	ordered := make(map[string]bool, len(tableOrder))
	for _, name := range tableOrder {
		ordered[name] = true
		if t, ok := byName[name]; ok {
			fmt.Fprintf(&b, "-- %s\n%s\n\n", t.TableName, t.SQL)
		}
	}
	for _, t := range mainTables {
		if !ordered[t.TableName] {
			fmt.Fprintf(&b, "-- %s\n%s\n\n", t.TableName, t.SQL)
		}
	}

	b.WriteString("-- Junction tables for many-to-many relationships\n\n")

	for _, j := range g.junctions {
		parentRef := "id"
		if j.ParentTable == "mineSites" {
			parentRef = "icglrId"
		}
		fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %s (
  %s %s NOT NULL,
  %s %s NOT NULL,
  PRIMARY KEY (%s, %s),
  FOREIGN KEY (%s) REFERENCES %s(%s),
  FOREIGN KEY (%s) REFERENCES %s(id)
);

`,
			j.TableName,
			j.ParentKey, j.ParentKeyType,
			j.ChildKey, j.ChildKeyType,
			j.ParentKey, j.ChildKey,
			j.ParentKey, j.ParentTable, parentRef,
			j.ChildKey, j.ChildTable)
	}

	b.WriteString(`CREATE TABLE IF NOT EXISTS mineSiteMinerals (
  mineSiteId TEXT NOT NULL,
  mineralCode TEXT NOT NULL,
  PRIMARY KEY (mineSiteId, mineralCode),
  FOREIGN KEY (mineSiteId) REFERENCES mineSites(icglrId)
);

`)

	b.WriteString(`CREATE TABLE IF NOT EXISTS lotCreatorRoles (
  lotNumber TEXT NOT NULL,
  roleCode INTEGER NOT NULL CHECK(roleCode BETWEEN 1 AND 8),
  PRIMARY KEY (lotNumber, roleCode),
  FOREIGN KEY (lotNumber) REFERENCES lots(lotNumber)
);

`)

	b.WriteString(`CREATE TABLE IF NOT EXISTS lotOriginatingOperations (
  lotNumber TEXT NOT NULL,
  operationCode INTEGER NOT NULL CHECK(operationCode BETWEEN 1 AND 8),
  PRIMARY KEY (lotNumber, operationCode),
  FOREIGN KEY (lotNumber) REFERENCES lots(lotNumber)
);

`)

	b.WriteString(`CREATE TABLE IF NOT EXISTS lotInputLots (
  lotNumber TEXT NOT NULL,
  inputLotNumber TEXT NOT NULL,
  PRIMARY KEY (lotNumber, inputLotNumber),
  FOREIGN KEY (lotNumber) REFERENCES lots(lotNumber),
  FOREIGN KEY (inputLotNumber) REFERENCES lots(lotNumber)
);

`)

	if _, ok := byName["statusHistory"]; !ok {
		b.WriteString(`CREATE TABLE IF NOT EXISTS statusHistory (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  mineSiteId TEXT NOT NULL,
  dateOfChange DATE NOT NULL,
  newStatus INTEGER NOT NULL CHECK(newStatus IN (0, 1, 2, 3)),
  FOREIGN KEY (mineSiteId) REFERENCES mineSites(icglrId)
);

CREATE INDEX IF NOT EXISTS idx_statusHistory_mineSiteId ON statusHistory(mineSiteId);
CREATE INDEX IF NOT EXISTS idx_statusHistory_dateOfChange ON statusHistory(dateOfChange);

`)
	}

	b.WriteString(`CREATE TABLE IF NOT EXISTS licenseCommodities (
  licenseId INTEGER NOT NULL,
  mineralCode TEXT NOT NULL,
  PRIMARY KEY (licenseId, mineralCode),
  FOREIGN KEY (licenseId) REFERENCES licenses(id)
);

`)

	b.WriteString(`CREATE TABLE IF NOT EXISTS lotTags (
  lotNumber TEXT NOT NULL,
  tagIdentifier TEXT NOT NULL,
  PRIMARY KEY (lotNumber, tagIdentifier),
  FOREIGN KEY (lotNumber) REFERENCES lots(lotNumber),
  FOREIGN KEY (tagIdentifier) REFERENCES tags(identifier)
);

`)

	b.WriteString(`CREATE TABLE IF NOT EXISTS lotTaxes (
  lotNumber TEXT NOT NULL,
  taxId INTEGER NOT NULL,
  PRIMARY KEY (lotNumber, taxId),
  FOREIGN KEY (lotNumber) REFERENCES lots(lotNumber),
  FOREIGN KEY (taxId) REFERENCES taxes(id)
);

`)

	return b.String()
}
