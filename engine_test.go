package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndValidate_Basic(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"type": "object",
		"properties": {"name": {"type": "string", "minLength": 2}},
		"required": ["name"]
	}`))
	require.NoError(t, err)

	assert.True(t, v.IsValid(map[string]any{"name": "Al"}))
	assert.False(t, v.IsValid(map[string]any{"name": "A"}))
	assert.False(t, v.IsValid(map[string]any{}))

	errs := v.Validate(map[string]any{})
	require.NotNil(t, errs)
	assert.Equal(t, KindRequired, errs.Kind)
}

func TestBuildAndValidate_DialectSelection(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"id": "http://example.com/draft4",
		"type": "object",
		"properties": {"n": {"type": "number", "exclusiveMinimum": true, "minimum": 0}}
	}`), WithDraft(Draft4))
	require.NoError(t, err)
	assert.Equal(t, Draft4, v.Dialect())

	assert.True(t, v.IsValid(map[string]any{"n": 1}))
	assert.False(t, v.IsValid(map[string]any{"n": 0}))
}

func TestIterErrors_CollectsAllOfFailures(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"allOf": [
			{"type": "object", "required": ["a"]},
			{"type": "object", "required": ["b"]}
		]
	}`))
	require.NoError(t, err)

	errs := v.IterErrors(map[string]any{})
	assert.GreaterOrEqual(t, len(errs), 2, "both allOf branches should surface their own required-key failure")
}

func TestProgramCodec_RoundTrip(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "pattern": "^[a-z]+$"},
			"score": {"type": "number", "multipleOf": 0.5}
		},
		"required": ["name"],
		"patternProperties": {"^x-": {"type": "string"}},
		"additionalProperties": false
	}`))
	require.NoError(t, err)

	data, err := v.Program().Encode()
	require.NoError(t, err)
	require.NotEmpty(t, data.Instructions)

	v2, err := NewValidatorFromData(data)
	require.NoError(t, err)

	valid := map[string]any{"name": "abc", "score": 1.5, "x-foo": "bar"}
	invalid := map[string]any{"name": "abc", "extra": 1}

	assert.Equal(t, v.IsValid(valid), v2.IsValid(valid))
	assert.True(t, v2.IsValid(valid))
	assert.Equal(t, v.IsValid(invalid), v2.IsValid(invalid))
	assert.False(t, v2.IsValid(invalid))
}

func TestValidate_SchemaPath(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"type": "object",
		"properties": {"name": {"type": "string", "maxLength": 3}}
	}`))
	require.NoError(t, err)

	errs := v.Validate(map[string]any{"name": "abcdef"})
	require.NotNil(t, errs)
	assert.Equal(t, "/properties/name/maxLength", errs.SchemaPath())
	assert.Equal(t, "/name", errs.InstancePath())
}

func TestValidate_SchemaPathThroughRef(t *testing.T) {
	v, err := CompileJSON([]byte(`{
		"$defs": {"pos": {"type": "integer", "minimum": 0}},
		"type": "object",
		"properties": {"count": {"$ref": "#/$defs/pos"}}
	}`))
	require.NoError(t, err)

	errs := v.Validate(map[string]any{"count": -1})
	require.NotNil(t, errs)
	assert.Equal(t, "/$defs/pos/minimum", errs.SchemaPath())
	assert.Equal(t, "/count", errs.InstancePath())
}

func TestDynamicRef_OutermostAnchorWins(t *testing.T) {
	// The 2020-12 spec's canonical "extensible list" example: list.json
	// defers each element's schema to whatever resource in the runtime
	// scope declares the "item" dynamic anchor, defaulting to "no
	// constraints" when nothing overrides it. A schema that $refs list.json
	// and also declares its own "item" dynamic anchor should see its
	// override win, even though list.json's $dynamicRef resolves lexically
	// to its own unconstrained $defs/item at compile time.
	reg := newRegistry(nil)
	listRes := &Resource{
		URI: "http://example.com/list",
		Document: map[string]any{
			"$id":     "http://example.com/list",
			"$schema": "https://json-schema.org/draft/2020-12/schema",
			"type":    "object",
			"properties": map[string]any{
				"entries": map[string]any{
					"type":  "array",
					"items": map[string]any{"$dynamicRef": "#item"},
				},
			},
			"$defs": map[string]any{
				"item": map[string]any{"$dynamicAnchor": "item"},
			},
		},
		Dialect: Draft2020_12,
	}
	reg, err := reg.TryWithResource(listRes.URI, listRes)
	require.NoError(t, err)

	schema := map[string]any{
		"$id":     "http://example.com/override",
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"$ref":    "http://example.com/list",
		"$defs": map[string]any{
			"itemOverride": map[string]any{
				"$dynamicAnchor": "item",
				"type":           "string",
			},
		},
	}

	v, err := Build(schema, WithRegistry(reg), WithBaseURI("http://example.com/override"), WithDraft(Draft2020_12))
	require.NoError(t, err)

	assert.True(t, v.IsValid(map[string]any{"entries": []any{"a", "b"}}))
	assert.False(t, v.IsValid(map[string]any{"entries": []any{1, 2}}), "override's string anchor should win over list.json's own unconstrained default")
}

func TestProgramCodec_PreservesDialect(t *testing.T) {
	v, err := CompileJSON([]byte(`{"type": "string"}`), WithDraft(Draft2019_09))
	require.NoError(t, err)

	data, err := v.Program().Encode()
	require.NoError(t, err)
	assert.Equal(t, Draft2019_09, data.Dialect)

	v2, err := NewValidatorFromData(data)
	require.NoError(t, err)
	assert.Equal(t, Draft2019_09, v2.Dialect())
}
