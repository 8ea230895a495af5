package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkString(t *testing.T) {
	set := map[string]bool{}
	markString(set, "a")
	markString(set, "b")
	markString(set, "a")
	assert.Equal(t, map[string]bool{"a": true, "b": true}, set)
}

func TestMarkInt(t *testing.T) {
	set := map[int]bool{}
	markInt(set, 1)
	markInt(set, 2)
	markInt(set, 1)
	assert.Equal(t, map[int]bool{1: true, 2: true}, set)
}

func TestMergeStringSets(t *testing.T) {
	dst := map[string]bool{"a": true}
	src := map[string]bool{"b": true, "c": true}
	merged := mergeStringSets(dst, src)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, merged)
}

func TestMergeIntSets(t *testing.T) {
	dst := map[int]bool{0: true}
	src := map[int]bool{1: true, 2: true}
	merged := mergeIntSets(dst, src)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, merged)
}
