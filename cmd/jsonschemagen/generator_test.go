package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docFromSnippet parses a Go source snippet and returns the first GenDecl's
// doc comment, for exercising parseMarker without a full package on disk.
func docFromSnippet(t *testing.T, src string) *ast.CommentGroup {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", src, parser.ParseComments)
	require.NoError(t, err)
	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Doc != nil {
			return gd.Doc
		}
	}
	return nil
}

func newTestGenerator(t *testing.T) *CodeGenerator {
	t.Helper()

	config := &GeneratorConfig{
		OutputSuffix: "_schema.go",
		DryRun:       true,
	}

	generator, err := NewCodeGenerator(config)
	require.NoError(t, err, "failed to create generator")
	require.NotNil(t, generator, "generator should not be nil")

	return generator
}

func TestStructAnalyzer_FindsMarker(t *testing.T) {
	analyzer := NewStructAnalyzer()

	targets, err := analyzer.AnalyzePackage("./testdata")
	require.NoError(t, err, "failed to analyze testdata package")
	require.Len(t, targets, 1, "expected exactly one //jsonschema:embed target")

	target := targets[0]
	assert.Equal(t, "User", target.TypeName)
	assert.Equal(t, "user.schema.json", target.SchemaRef)
	assert.Equal(t, "2020-12", target.Draft)
}

func TestParseMarker_RequiresPath(t *testing.T) {
	doc := docFromSnippet(t, "package p\n\n//jsonschema:embed draft=\"2020-12\"\ntype T struct{}\n")
	require.NotNil(t, doc)
	_, _, ok := parseMarker(doc)
	assert.False(t, ok, "a marker without path= should not produce a target")
}

func TestParseMarker_ExtractsAttributes(t *testing.T) {
	doc := docFromSnippet(t, "package p\n\n//jsonschema:embed path=\"x.json\" draft=\"draft-7\"\ntype T struct{}\n")
	require.NotNil(t, doc)
	ref, draft, ok := parseMarker(doc)
	require.True(t, ok)
	assert.Equal(t, "x.json", ref)
	assert.Equal(t, "draft-7", draft)
}

func TestCodeGenerator_ProcessPackage_DryRun(t *testing.T) {
	generator := newTestGenerator(t)

	err := generator.ProcessPackage("./testdata")
	require.NoError(t, err, "dry-run generation should not fail or write files")
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2020-12", false},
		{"", false},
		{"2019-09", false},
		{"7", false},
		{"6", false},
		{"4", false},
		{"draft-7", false},
		{"not-a-draft", true},
	}
	for _, tt := range tests {
		_, err := parseDraft(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "draft %q should be rejected", tt.in)
		} else {
			assert.NoError(t, err, "draft %q should be accepted", tt.in)
		}
	}
}

func TestLowerFirst(t *testing.T) {
	assert.Equal(t, "user", lowerFirst("User"))
	assert.Equal(t, "", lowerFirst(""))
}
