package internal

import (
	"strings"
)

// resolveLocalRef resolves a local $ref fragment ("#/definitions/X") against
// the enclosing common schema, walking path segments through definitions
// first and direct keys second. Returns nil when any segment is missing.
func resolveLocalRef(ref string, common map[string]any) map[string]any {
	if common == nil {
		return nil
	}

	frag := ref
	if idx := strings.Index(frag, "#"); idx >= 0 {
		frag = frag[idx+1:]
	}

	var cursor any = common
	for _, part := range strings.Split(frag, "/") {
		if part == "" || part == "#" {
			continue
		}
		node, ok := cursor.(map[string]any)
		if !ok {
			return nil
		}
		if defs, ok := node["definitions"].(map[string]any); ok {
			if next, ok := defs[part]; ok {
				cursor = next
				continue
			}
		}
		if next, ok := node[part]; ok {
			cursor = next
			continue
		}
		return nil
	}

	result, _ := cursor.(map[string]any)
	return result
}

// resolveExternalRef resolves a cross-file $ref
// ("../core/common.json#/definitions/X"). The target schema is found by
// searching every loaded document for an $id containing the referenced file
// name, falling back to any document with a definitions block, falling back
// further to the core/common schema. Best effort: returns nil when the chain
// fails.
func resolveExternalRef(ref string, set *SchemaSet) map[string]any {
	schemaPath, frag, _ := strings.Cut(ref, "#")

	target := set.Get(schemaPath)
	if target == nil {
		parts := strings.Split(schemaPath, "/")
		fileName := parts[len(parts)-1]
		for _, key := range set.Keys() {
			doc := set.Get(key)
			id, _ := doc["$id"].(string)
			if fileName != "" && strings.Contains(id, fileName) {
				target = doc
				break
			}
			if _, ok := doc["definitions"].(map[string]any); ok && target == nil {
				target = doc
			}
		}
	}
	if target == nil {
		target = set.FindByKeySubstring("core/common")
	}
	if target == nil {
		return nil
	}
	if frag == "" {
		return target
	}

	var cursor any = target
	for _, part := range strings.Split(frag, "/") {
		if part == "" || part == "#" {
			continue
		}
		node, ok := cursor.(map[string]any)
		if !ok {
			return nil
		}
		if next, ok := node[part]; ok {
			cursor = next
			continue
		}
		if defs, ok := node["definitions"].(map[string]any); ok {
			if next, ok := defs[part]; ok {
				cursor = next
				continue
			}
		}
		return nil
	}

	result, _ := cursor.(map[string]any)
	return result
}

// resolveSchema dereferences prop when it carries a $ref. Unresolvable refs
// return the original fragment so callers fall back to treating it as TEXT.
func resolveSchema(prop map[string]any, set *SchemaSet, common map[string]any) map[string]any {
	if prop == nil {
		return nil
	}
	ref, ok := prop["$ref"].(string)
	if !ok || ref == "" {
		return prop
	}

	var resolved map[string]any
	if strings.HasPrefix(ref, "#/") {
		resolved = resolveLocalRef(ref, common)
	} else {
		resolved = resolveExternalRef(ref, set)
	}
	if resolved == nil {
		return prop
	}
	return resolved
}
