// Package main - AST analysis functionality for jsonschemagen.
// This module scans Go source files for the //jsonschema:embed marker
// comment and extracts the schema path, target draft, and the type it
// decorates.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
)

// EmbedTarget describes one type decorated with a //jsonschema:embed marker.
type EmbedTarget struct {
	TypeName  string // the Go type the marker decorates
	Package   string
	SchemaRef string // path= value, resolved relative to the source file's directory
	Draft     string // draft= value, e.g. "2020-12"
	FilePath  string // source file the marker was found in
	SourceDir string
}

var markerPattern = regexp.MustCompile(`^//jsonschema:embed\s+(.*)$`)
var attrPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// StructAnalyzer walks a package directory looking for //jsonschema:embed
// markers above type declarations.
type StructAnalyzer struct {
	fset *token.FileSet
}

func NewStructAnalyzer() *StructAnalyzer {
	return &StructAnalyzer{fset: token.NewFileSet()}
}

// AnalyzePackage parses every Go file in pkgPath and returns one EmbedTarget
// per marked type declaration.
func (a *StructAnalyzer) AnalyzePackage(pkgPath string) ([]*EmbedTarget, error) {
	astPkgs, err := parser.ParseDir(a.fset, pkgPath, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse package %s: %w", pkgPath, err)
	}

	var targets []*EmbedTarget
	for pkgName, astPkg := range astPkgs {
		if strings.HasSuffix(pkgName, "_test") {
			continue
		}
		for fileName, file := range astPkg.Files {
			found, err := a.analyzeFile(fileName, file, pkgName)
			if err != nil {
				return nil, fmt.Errorf("failed to analyze file %s: %w", fileName, err)
			}
			targets = append(targets, found...)
		}
	}
	return targets, nil
}

func (a *StructAnalyzer) analyzeFile(fileName string, file *ast.File, pkgName string) ([]*EmbedTarget, error) {
	var targets []*EmbedTarget
	dir := filepath.Dir(fileName)

	ast.Inspect(file, func(n ast.Node) bool {
		genDecl, ok := n.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE || genDecl.Doc == nil {
			return true
		}
		ref, draft, ok := parseMarker(genDecl.Doc)
		if !ok {
			return true
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			targets = append(targets, &EmbedTarget{
				TypeName:  typeSpec.Name.Name,
				Package:   pkgName,
				SchemaRef: ref,
				Draft:     draft,
				FilePath:  fileName,
				SourceDir: dir,
			})
		}
		return true
	})

	return targets, nil
}

// parseMarker looks for a //jsonschema:embed line in a comment group and
// extracts its path= and draft= attributes.
func parseMarker(doc *ast.CommentGroup) (ref, draft string, ok bool) {
	for _, c := range doc.List {
		m := markerPattern.FindStringSubmatch(c.Text)
		if m == nil {
			continue
		}
		attrs := map[string]string{}
		for _, kv := range attrPattern.FindAllStringSubmatch(m[1], -1) {
			attrs[kv[1]] = kv[2]
		}
		ref, ok = attrs["path"]
		if !ok {
			continue
		}
		draft = attrs["draft"]
		return ref, draft, true
	}
	return "", "", false
}
