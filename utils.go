package jsonschema

// markString records key as present in a bit-set-like string map. Used by
// vm.claimProp to track which object keys a schema region has evaluated, so
// a later unevaluatedProperties in the same region knows what to skip.
func markString(set map[string]bool, key string) {
	set[key] = true
}

// markInt records index as present in an int map. Used by vm.claimItem for
// unevaluatedItems' array-side equivalent of markString.
func markInt(set map[int]bool, index int) {
	set[index] = true
}

// mergeStringSets merges src into dst, returning dst.
func mergeStringSets(dst, src map[string]bool) map[string]bool {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// mergeIntSets merges src into dst, returning dst.
func mergeIntSets(dst, src map[int]bool) map[int]bool {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
