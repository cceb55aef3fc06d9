package internal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
)

// ValidationIssue is one problem found while validating a document.
type ValidationIssue struct {
	Message      string `json:"message"`
	InstancePath string `json:"instancePath,omitempty"`
	SchemaPath   string `json:"schemaPath,omitempty"`
}

// ValidationResult reports the outcome of validating one document.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// Validator validates documents against the loaded schema corpus. Each
// schema is registered under two names: its slash-to-dash relative path
// ("mine-site-license" for mine-site/license.json) and its bare file name
// ("license").
type Validator struct {
	set      *SchemaSet
	resolved map[string]*jsonschema.Resolved
	names    map[string]string
}

// NewValidator compiles every loaded schema document. Cross-file references
// are served from the schema set itself, matched by $id and then by file
// name.
func NewValidator(set *SchemaSet, log *zap.SugaredLogger) (*Validator, error) {
	if log == nil {
		log = zap.S()
	}

	v := &Validator{
		set:      set,
		resolved: make(map[string]*jsonschema.Resolved),
		names:    make(map[string]string),
	}

	for _, key := range set.Keys() {
		if !isRelativePathKey(key) {
			continue
		}
		doc := set.Get(key)
		id, _ := doc["$id"].(string)
		if id == "" {
			continue
		}

		if _, done := v.resolved[id]; !done {
			resolved, err := compileSchema(doc, id, set)
			if err != nil {
				log.Warnw("failed to compile schema", "id", id, "error", err)
				continue
			}
			v.resolved[id] = resolved
		}

		pathName := strings.ReplaceAll(strings.TrimSuffix(key, ".json"), "/", "-")
		v.names[pathName] = id

		fileName := key
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			fileName = key[idx+1:]
		}
		v.names[strings.TrimSuffix(fileName, ".json")] = id
	}

	if len(v.resolved) == 0 {
		return nil, fmt.Errorf("no schemas could be compiled for validation")
	}

	return v, nil
}

func isRelativePathKey(key string) bool {
	return strings.HasSuffix(key, ".json") && !strings.Contains(key, "://")
}

func compileSchema(doc map[string]any, baseURI string, set *SchemaSet) (*jsonschema.Resolved, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}

	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{
		BaseURI: baseURI,
		Loader:  schemaLoader(set),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JSON schema: %w", err)
	}
	return resolved, nil
}

// schemaLoader serves referenced schemas from the loaded set instead of the
// network, matching by full URI first and by file name second.
func schemaLoader(set *SchemaSet) func(uri *url.URL) (*jsonschema.Schema, error) {
	return func(uri *url.URL) (*jsonschema.Schema, error) {
		target := uri.String()

		doc := set.Get(target)
		if doc == nil {
			parts := strings.Split(uri.Path, "/")
			fileName := parts[len(parts)-1]
			for _, key := range set.Keys() {
				candidate := set.Get(key)
				id, _ := candidate["$id"].(string)
				if fileName != "" && strings.Contains(id, fileName) {
					doc = candidate
					break
				}
			}
		}
		if doc == nil {
			return nil, fmt.Errorf("schema not found: %s", target)
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var schema jsonschema.Schema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, err
		}
		return &schema, nil
	}
}

// Validate checks data against the named schema.
func (v *Validator) Validate(data any, schemaName string) ValidationResult {
	id, ok := v.names[schemaName]
	if !ok {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationIssue{
				{Message: fmt.Sprintf("Schema '%s' not found", schemaName)},
			},
		}
	}

	resolved, ok := v.resolved[id]
	if !ok {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationIssue{
				{Message: fmt.Sprintf("Validator for schema '%s' not found", schemaName)},
			},
		}
	}

	if err := resolved.Validate(data); err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []ValidationIssue{{Message: err.Error()}},
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateJSON unmarshals raw JSON and validates it against the named
// schema.
func (v *Validator) ValidateJSON(raw []byte, schemaName string) ValidationResult {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []ValidationIssue{{Message: fmt.Sprintf("invalid JSON: %s", err)}},
		}
	}
	return v.Validate(data, schemaName)
}

// Names lists every registered schema name in sorted order.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.names))
	for name := range v.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
