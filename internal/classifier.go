package internal

import (
	"fmt"
	"sort"
	"strings"
)

// Reference identifies a property classified as a foreign key into a shared
// entity table rather than flattened inline.
type Reference struct {
	EntityName string
	TableName  string
}

// entityTableNames maps shared entity definition names to their tables.
var entityTableNames = map[string]string{
	"address":          "addresses",
	"businessentity":   "businessEntities",
	"contactdetails":   "contactDetails",
	"geolocalization":  "geolocalizations",
	"minesitelocation": "mineSiteLocations",
}

// Classifier decides whether a resolved object property references one of
// the shared entity shapes (Address, BusinessEntity, ContactDetails,
// Geolocalization). The shape signatures are extracted once from the common
// schema and checked for ambiguity up front instead of being recomputed per
// property.
type Classifier struct {
	signatures map[string][]string
}

// NewClassifier builds the classifier from the common schema's definitions.
// Two entity definitions sharing an identical property set would make
// structural matching ambiguous, so that fails fast.
func NewClassifier(common map[string]any) (*Classifier, error) {
	c := &Classifier{signatures: make(map[string][]string)}

	defs, _ := common["definitions"].(map[string]any)
	for _, name := range []string{"Address", "BusinessEntity", "ContactDetails", "Geolocalization"} {
		def, _ := defs[name].(map[string]any)
		if def == nil {
			continue
		}
		props, _ := def["properties"].(map[string]any)
		if len(props) == 0 {
			continue
		}
		c.signatures[name] = sortedKeys(props)
	}

	seen := make(map[string]string)
	for name, sig := range c.signatures {
		key := strings.Join(sig, ",")
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("ambiguous entity signatures: %s and %s share the same property set", prev, name)
		}
		seen[key] = name
	}

	return c, nil
}

// HasEntity reports whether the named entity definition was found in the
// common schema.
func (c *Classifier) HasEntity(name string) bool {
	_, ok := c.signatures[name]
	return ok
}

// Classify returns the entity reference for a property, or false. Structural
// matching runs first: a resolved object schema whose property-name set
// exactly equals one of the known entity shapes is a reference to that
// entity's table. The ordered name heuristics run second.
func (c *Classifier) Classify(propName string, resolved map[string]any) (Reference, bool) {
	if resolved == nil {
		return Reference{}, false
	}
	typ, _ := resolved["type"].(string)
	props, _ := resolved["properties"].(map[string]any)
	if typ != "object" || len(props) == 0 {
		return Reference{}, false
	}
	if len(c.signatures) == 0 {
		return Reference{}, false
	}

	resolvedProps := sortedKeys(props)
	for _, name := range []string{"Address", "BusinessEntity", "ContactDetails", "Geolocalization"} {
		sig, ok := c.signatures[name]
		if !ok || len(sig) != len(resolvedProps) {
			continue
		}
		if equalStringSets(sig, resolvedProps) {
			entity := strings.ToLower(name)
			return Reference{EntityName: entity, TableName: tableNameForEntity(name)}, true
		}
	}

	if propName == "legalAddress" || propName == "physicalAddress" ||
		strings.HasSuffix(propName, "Address") ||
		(strings.Contains(propName, "address") && !strings.Contains(propName, "Id")) {
		if c.HasEntity("Address") {
			return Reference{EntityName: "address", TableName: "addresses"}, true
		}
	}

	if propName == "contactDetails" || strings.HasSuffix(propName, "ContactDetails") {
		if c.HasEntity("ContactDetails") {
			return Reference{EntityName: "contactdetails", TableName: "contactDetails"}, true
		}
	}

	if propName == "geolocalization" || strings.HasSuffix(propName, "Geolocalization") {
		if c.HasEntity("Geolocalization") {
			return Reference{EntityName: "geolocalization", TableName: "geolocalizations"}, true
		}
	}

	if propName == "localGeographicDesignation" || strings.HasSuffix(propName, "LocalGeographicDesignation") {
		if c.HasEntity("Address") {
			return Reference{EntityName: "address", TableName: "addresses"}, true
		}
	}

	return Reference{}, false
}

// tableNameForEntity maps an entity definition name to its table, falling
// back to lower-camel pluralization for unknown entities.
func tableNameForEntity(entityName string) string {
	if table, ok := entityTableNames[strings.ToLower(entityName)]; ok {
		return table
	}
	camel := camelCase(entityName)
	return strings.ToLower(camel[:1]) + camel[1:] + "s"
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
