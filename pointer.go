package jsonschema

import (
	"strconv"

	"github.com/kaptinlin/jsonpointer"
)

// pointerEscape encodes a raw reference-token per RFC 6901 (~ -> ~0, / -> ~1).
func pointerEscape(token string) string {
	return jsonpointer.Escape(token)
}

// pointerUnescape decodes a single RFC 6901 reference token.
func pointerUnescape(token string) string {
	return jsonpointer.Unescape(token)
}

// pointerTokens splits a JSON Pointer string into its unescaped reference
// tokens, delegating to the ecosystem jsonpointer package for RFC 6901
// compliance (~0/~1 escaping) the same way the teacher's ref.go does.
func pointerTokens(pointer string) []string {
	return jsonpointer.Parse(pointer)
}

// formatPointer joins reference tokens back into a "/a/b/c" pointer string.
func formatPointer(tokens ...string) string {
	return jsonpointer.Format(tokens...)
}

// evalPointer walks a decoded JSON value per pointerTokens, enforcing the
// spec's numeric-segment rule for arrays (non-negative decimal integer, no
// leading zero). Returns ReferenceResolutionError on any failure.
func evalPointer(root any, pointer string) (any, error) {
	cur := root
	for _, tok := range pointerTokens(pointer) {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[tok]
			if !ok {
				return nil, newReferenceResolutionError("pointer segment not found: " + tok)
			}
			cur = next
		case []any:
			idx, err := arrayIndex(tok)
			if err != nil {
				return nil, err
			}
			if idx < 0 || idx >= len(v) {
				return nil, newReferenceResolutionError("pointer index out of range: " + tok)
			}
			cur = v[idx]
		default:
			return nil, newReferenceResolutionError("pointer segment on non-container: " + tok)
		}
	}
	return cur, nil
}

// arrayIndex validates and parses an array pointer segment: must be "0" or
// a non-negative decimal integer without a leading zero.
func arrayIndex(tok string) (int, error) {
	if tok == "" {
		return 0, newReferenceResolutionError("empty array index")
	}
	if tok == "0" {
		return 0, nil
	}
	if tok[0] == '0' || tok[0] == '-' {
		return 0, newReferenceResolutionError("malformed array index: " + tok)
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, newReferenceResolutionError("malformed array index: " + tok)
		}
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, newReferenceResolutionError("malformed array index: " + tok)
	}
	return n, nil
}
