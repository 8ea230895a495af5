package jsonschema

// Resource wraps a decoded JSON document together with the dialect it is
// interpreted under. A document's dialect is fixed at registry build time:
// either declared by its own $schema, inherited from the Options default, or
// inherited from the resource that embedded it.
type Resource struct {
	URI      string
	Document any
	Dialect  Dialect
}

// subresourceRef is one (pointer, value) pair yielded by Subresources,
// together with whether crossing into it pushes a new base-URI scope (true
// only when the subresource itself carries an $id/id).
type subresourceRef struct {
	pointer string
	value   any
	id      string // "" unless this subresource declares its own $id/id
}

// Subresources walks doc (normally r.Document, but also called recursively
// on nested schema values) one level at a time per the dialect's
// subresource table, yielding every (pointer, schema) pair reachable by a
// schema-introducing keyword. It does not recurse into the yielded values;
// callers recurse by calling Subresources again on each yielded value.
func (r *Resource) Subresources(doc any, base string) []subresourceRef {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	var out []subresourceRef
	for key, val := range obj {
		switch r.Dialect.subresourceClass(key) {
		case inValue:
			out = append(out, makeSubresourceRef(base, key, val))
		case inChildMap:
			m, ok := val.(map[string]any)
			if !ok {
				continue
			}
			for name, sub := range m {
				out = append(out, makeSubresourceRef(base, key+"/"+pointerEscape(name), sub))
			}
		case inChildArray:
			arr, ok := val.([]any)
			if !ok {
				continue
			}
			for i, sub := range arr {
				out = append(out, makeSubresourceRef(base, key+"/"+itoaIndex(i), sub))
			}
		case special:
			out = append(out, specialSubresources(r.Dialect, key, val)...)
		}
	}
	return out
}

func makeSubresourceRef(base, segment string, val any) subresourceRef {
	ref := subresourceRef{pointer: segment, value: val}
	if m, ok := val.(map[string]any); ok {
		ref.id, _ = m["$id"].(string)
		if ref.id == "" {
			ref.id, _ = m["id"].(string)
		}
	}
	_ = base
	return ref
}

// specialSubresources handles "items" (schema or array of schemas depending
// on dialect/prefixItems) and "dependencies" (map whose values are either a
// schema or a plain string-array, only the former counting as a subresource).
func specialSubresources(d Dialect, key string, val any) []subresourceRef {
	switch key {
	case "items":
		switch v := val.(type) {
		case map[string]any:
			return []subresourceRef{makeSubresourceRef("", "items", v)}
		case []any:
			if d == Draft2020_12 {
				// 2020-12 has no array-form items; treat defensively as
				// per-index subresources to stay permissive on odd input.
			}
			out := make([]subresourceRef, 0, len(v))
			for i, sub := range v {
				out = append(out, makeSubresourceRef("", "items/"+itoaIndex(i), sub))
			}
			return out
		case bool:
			return []subresourceRef{{pointer: "items", value: v}}
		}
	case "dependencies":
		m, ok := val.(map[string]any)
		if !ok {
			return nil
		}
		var out []subresourceRef
		for name, sub := range m {
			if _, isSchema := sub.(map[string]any); isSchema {
				out = append(out, makeSubresourceRef("", "dependencies/"+pointerEscape(name), sub))
			} else if b, isBool := sub.(bool); isBool {
				out = append(out, subresourceRef{pointer: "dependencies/" + pointerEscape(name), value: b})
			}
		}
		return out
	}
	return nil
}

func itoaIndex(i int) string {
	if i == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	n := i
	for n > 0 {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[pos:])
}
