package internal

import (
	"strings"

	"github.com/icglr-rcm/mindata"
)

// flattenProperties walks a schema's properties and produces the ordered
// column sequence for one table. Entity references become a single FK
// column, arrays are skipped entirely (junction tables cover them),
// non-entity nested objects recurse with a `_`-joined prefix, and scalar
// leaves become typed columns.
func flattenProperties(properties map[string]any, prefix string, required []string, set *SchemaSet, cls *Classifier) []mindata.Column {
	var columns []mindata.Column

	common := set.Common()

	for _, propName := range sortedKeys(properties) {
		propSchema, _ := properties[propName].(map[string]any)
		if propSchema == nil {
			continue
		}

		fullPropName := propName
		if prefix != "" {
			fullPropName = prefix + "_" + propName
		}
		isRequired := containsString(required, propName)

		resolved := resolveSchema(propSchema, set, common)

		if ref, ok := cls.Classify(propName, resolved); ok {
			columns = append(columns, referenceColumn(fullPropName, ref, isRequired))
			continue
		}

		typ, _ := resolved["type"].(string)
		nestedProps, _ := resolved["properties"].(map[string]any)

		switch {
		case typ == "array":
			// Arrays never become columns; junction tables are assembled
			// during whole-database generation.
			continue
		case typ == "object" && len(nestedProps) > 0:
			if ref, ok := cls.Classify("", resolved); ok {
				columns = append(columns, referenceColumn(fullPropName, ref, isRequired))
				continue
			}
			if sqlType := sqlTypeFor(resolved, fullPropName); sqlType != "" {
				// Polygon-shaped objects serialize to JSON text.
				columns = append(columns, mindata.Column{
					Name:     camelCase(fullPropName),
					SQLType:  sqlType,
					Required: isRequired,
				})
				continue
			}
			nestedRequired := stringSlice(resolved["required"])
			columns = append(columns, flattenProperties(nestedProps, fullPropName, nestedRequired, set, cls)...)
		case typ != "":
			sqlType := sqlTypeFor(resolved, fullPropName)
			if sqlType == "" {
				continue
			}
			columns = append(columns, mindata.Column{
				Name:     camelCase(fullPropName),
				SQLType:  sqlType,
				Required: isRequired,
			})
		}
	}

	return columns
}

func referenceColumn(fullPropName string, ref Reference, required bool) mindata.Column {
	sqlType := "INTEGER"
	if ref.TableName == "businessEntities" {
		// Business entities key on a natural string identifier, not a
		// surrogate rowid.
		sqlType = "TEXT"
	}
	return mindata.Column{
		Name:           camelCase(fullPropName) + "Id",
		SQLType:        sqlType,
		Required:       required,
		IsReference:    true,
		ReferenceTable: ref.TableName,
		EntityName:     ref.EntityName,
	}
}

// sqlTypeFor maps a resolved scalar schema to its SQLite column type.
// Returns "" for arrays and flattenable objects.
func sqlTypeFor(schema map[string]any, propName string) string {
	if schema == nil {
		return "TEXT"
	}

	if _, hasRef := schema["$ref"]; hasRef {
		if _, hasType := schema["type"]; !hasType {
			// Unresolvable reference: fall back to TEXT.
			return "TEXT"
		}
	}

	typ, _ := schema["type"].(string)
	format, _ := schema["format"].(string)

	lower := strings.ToLower(propName)

	switch typ {
	case "object":
		if strings.HasSuffix(lower, "polygon") || lower == "polygon" {
			// GeoJSON polygons are stored as serialized JSON text.
			return "TEXT"
		}
		return ""
	case "string":
		switch format {
		case "date":
			return "DATE"
		case "date-time":
			return "DATETIME"
		}
		// Time values in this corpus are hhmmss strings, not ISO datetimes.
		if strings.Contains(lower, "time") {
			return "TEXT"
		}
		if strings.Contains(lower, "date") {
			return "DATE"
		}
		return "TEXT"
	case "integer", "number":
		if strings.Contains(lower, "latitude") || strings.Contains(lower, "longitude") {
			return "REAL"
		}
		return "INTEGER"
	case "boolean":
		return "INTEGER"
	case "array":
		return ""
	}

	return "TEXT"
}

// camelCase converts snake_case to camelCase; already-camelCase names pass
// through untouched.
func camelCase(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	out := parts[0]
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		out += strings.ToUpper(part[:1]) + part[1:]
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
