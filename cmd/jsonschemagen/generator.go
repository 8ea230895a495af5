// Package main - code generation functionality for jsonschemagen.
// This module runs the real jsonschema compiler against the schema file a
// //jsonschema:embed marker names and emits a sibling Go file containing the
// compiled Program's tables as literal composite literals, so the marked
// type validates itself with no schema parsing or compilation left at
// runtime.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/schemavm/jsonschema"
)

// GeneratorConfig mirrors schemagen's CLI-driven config, trimmed to the
// flags this direction of generation actually uses.
type GeneratorConfig struct {
	OutputSuffix string
	Verbose      bool
	DryRun       bool
	Force        bool
}

// CodeGenerator drives AnalyzePackage -> compile -> emit for one package
// directory.
type CodeGenerator struct {
	analyzer *StructAnalyzer
	config   *GeneratorConfig
}

func NewCodeGenerator(config *GeneratorConfig) (*CodeGenerator, error) {
	if config == nil {
		return nil, fmt.Errorf("jsonschemagen: generator config cannot be nil")
	}
	return &CodeGenerator{analyzer: NewStructAnalyzer(), config: config}, nil
}

// ProcessPackage generates one <file>_schema.go per source file that
// contains at least one //jsonschema:embed target.
func (g *CodeGenerator) ProcessPackage(packagePath string) error {
	targets, err := g.analyzer.AnalyzePackage(packagePath)
	if err != nil {
		return fmt.Errorf("failed to analyze package %s: %w", packagePath, err)
	}
	if len(targets) == 0 {
		if g.config.Verbose {
			fmt.Printf("no //jsonschema:embed markers found in package: %s\n", packagePath)
		}
		return nil
	}

	byFile := map[string][]*EmbedTarget{}
	for _, t := range targets {
		byFile[t.FilePath] = append(byFile[t.FilePath], t)
	}

	for file, fileTargets := range byFile {
		if err := g.generateFile(file, fileTargets); err != nil {
			return fmt.Errorf("failed to generate schema code for %s: %w", file, err)
		}
	}
	return g.writeHelpers(packagePath, targets[0].Package)
}

// writeHelpers emits the package-wide support code (the embedded-instance
// decoder and the validator constructor) once per package, shared by every
// generated _schema.go file so they don't each redeclare it.
func (g *CodeGenerator) writeHelpers(packagePath, pkgName string) error {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by jsonschemagen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)
	buf.WriteString("import (\n\t\"bytes\"\n\t\"encoding/json\"\n\n\t\"github.com/schemavm/jsonschema\"\n)\n\n")
	buf.WriteString("func decodeEmbeddedInstance(b []byte) (any, error) {\n")
	buf.WriteString("\tdec := json.NewDecoder(bytes.NewReader(b))\n")
	buf.WriteString("\tdec.UseNumber()\n")
	buf.WriteString("\tvar v any\n")
	buf.WriteString("\tif err := dec.Decode(&v); err != nil {\n\t\treturn nil, err\n\t}\n")
	buf.WriteString("\treturn v, nil\n}\n\n")
	buf.WriteString("func mustNewEmbeddedValidator(data jsonschema.ProgramData) *jsonschema.Validator {\n")
	buf.WriteString("\tv, err := jsonschema.NewValidatorFromData(data)\n")
	buf.WriteString("\tif err != nil {\n\t\tpanic(\"jsonschemagen: malformed embedded program: \" + err.Error())\n\t}\n")
	buf.WriteString("\treturn v\n}\n")

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		formatted = buf.Bytes()
	}
	outPath := filepath.Join(packagePath, "jsonschemagen_helpers"+g.config.OutputSuffix)
	if g.config.DryRun {
		if g.config.Verbose {
			fmt.Printf("--- dry run: %s ---\n%s\n", outPath, formatted)
		}
		return nil
	}
	return os.WriteFile(outPath, formatted, 0o644)
}

func (g *CodeGenerator) generateFile(sourceFile string, targets []*EmbedTarget) error {
	var blocks []string
	pkgName := targets[0].Package

	for _, t := range targets {
		block, err := g.generateTargetCode(t)
		if err != nil {
			return fmt.Errorf("type %s: %w", t.TypeName, err)
		}
		blocks = append(blocks, block)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by jsonschemagen from %s. DO NOT EDIT.\n\n", filepath.Base(sourceFile))
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)
	buf.WriteString("import (\n\t\"encoding/json\"\n\n\t\"github.com/schemavm/jsonschema\"\n)\n\n")
	for _, b := range blocks {
		buf.WriteString(b)
		buf.WriteString("\n")
	}

	out := buf.Bytes()
	formatted, err := format.Source(out)
	if err != nil {
		// Keep the unformatted source on disk rather than losing the
		// generation entirely; gofmt failures here point at a codec bug.
		formatted = out
	}

	outPath := outputPath(sourceFile, g.config.OutputSuffix)
	if g.config.DryRun {
		if g.config.Verbose {
			fmt.Printf("--- dry run: %s ---\n%s\n", outPath, formatted)
		}
		return nil
	}
	if !g.config.Force {
		if _, err := os.Stat(outPath); err == nil {
			if g.config.Verbose {
				fmt.Printf("skipping existing %s (use -force to overwrite)\n", outPath)
			}
			return nil
		}
	}
	return os.WriteFile(outPath, formatted, 0o644)
}

func outputPath(sourceFile, suffix string) string {
	dir := filepath.Dir(sourceFile)
	base := strings.TrimSuffix(filepath.Base(sourceFile), ".go")
	return filepath.Join(dir, base+suffix)
}

// generateTargetCode compiles one marked type's schema and renders its
// ProgramData literal plus IsValid/Validate methods.
func (g *CodeGenerator) generateTargetCode(t *EmbedTarget) (string, error) {
	schemaPath := t.SchemaRef
	if !filepath.IsAbs(schemaPath) {
		schemaPath = filepath.Join(t.SourceDir, schemaPath)
	}
	raw, err := os.ReadFile(schemaPath)
	if err != nil {
		return "", fmt.Errorf("reading schema %s: %w", schemaPath, err)
	}

	dialect, err := parseDraft(t.Draft)
	if err != nil {
		return "", err
	}

	validator, err := jsonschema.CompileJSON(raw, jsonschema.WithDraft(dialect))
	if err != nil {
		return "", fmt.Errorf("compiling %s: %w", schemaPath, err)
	}

	program, err := validator.Program().Encode()
	if err != nil {
		return "", fmt.Errorf("encoding compiled program for %s: %w", schemaPath, err)
	}

	varName := lowerFirst(t.TypeName) + "Program"
	validatorName := lowerFirst(t.TypeName) + "Validator"

	var b strings.Builder
	fmt.Fprintf(&b, "var %s = jsonschema.ProgramData{\n", varName)
	b.WriteString(renderInstructions(program.Instructions))
	b.WriteString(renderConstants(program.Constants))
	b.WriteString(renderLocations(program.Locations))
	b.WriteString(renderSubroutines(program.Subroutines))
	fmt.Fprintf(&b, "\tEntryPoint: %d,\n", program.EntryPoint)
	fmt.Fprintf(&b, "\tDialect: %s,\n", dialectConstName(program.Dialect))
	fmt.Fprintf(&b, "\tRootResourceURI: %s,\n", strconv.Quote(program.RootResourceURI))
	b.WriteString(renderDynamicTargets(program.DynamicTargets))
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "var %s = mustNewEmbeddedValidator(%s)\n\n", validatorName, varName)

	fmt.Fprintf(&b, "func (v *%s) IsValid() bool {\n", t.TypeName)
	b.WriteString("\tb, err := json.Marshal(v)\n\tif err != nil {\n\t\treturn false\n\t}\n")
	fmt.Fprintf(&b, "\tok, _ := %s.IsValidJSON(b)\n\treturn ok\n}\n\n", validatorName)

	fmt.Fprintf(&b, "func (v *%s) Validate() *jsonschema.ValidationError {\n", t.TypeName)
	b.WriteString("\tb, err := json.Marshal(v)\n")
	b.WriteString("\tif err != nil {\n\t\treturn &jsonschema.ValidationError{Kind: jsonschema.KindCustom, Message: err.Error()}\n\t}\n")
	b.WriteString("\tinstance, err := decodeEmbeddedInstance(b)\n")
	b.WriteString("\tif err != nil {\n\t\treturn &jsonschema.ValidationError{Kind: jsonschema.KindCustom, Message: err.Error()}\n\t}\n")
	fmt.Fprintf(&b, "\treturn %s.Validate(instance)\n}\n", validatorName)

	return b.String(), nil
}

func renderInstructions(ins []jsonschema.RawInstruction) string {
	var b strings.Builder
	b.WriteString("\tInstructions: []jsonschema.RawInstruction{\n")
	for _, i := range ins {
		fmt.Fprintf(&b, "\t\t{Op: %d, A: %d, B: %d, Node: %d},\n", i.Op, i.A, i.B, i.Node)
	}
	b.WriteString("\t},\n")
	return b.String()
}

func renderConstants(cs []jsonschema.RawConstant) string {
	var b strings.Builder
	b.WriteString("\tConstants: []jsonschema.RawConstant{\n")
	for _, c := range cs {
		b.WriteString("\t\t{\n")
		fmt.Fprintf(&b, "\t\t\tKind: %d,\n", c.Kind)
		if c.Str != "" {
			fmt.Fprintf(&b, "\t\t\tStr: %s,\n", strconv.Quote(c.Str))
		}
		if len(c.Strs) > 0 {
			fmt.Fprintf(&b, "\t\t\tStrs: %s,\n", quoteSlice(c.Strs))
		}
		if len(c.Patterns) > 0 {
			fmt.Fprintf(&b, "\t\t\tPatterns: %s,\n", quoteSlice(c.Patterns))
		}
		if c.RatNum != "" {
			fmt.Fprintf(&b, "\t\t\tRatNum: %s,\n\t\t\tRatDen: %s,\n", strconv.Quote(c.RatNum), strconv.Quote(c.RatDen))
		}
		if len(c.Any) > 0 {
			fmt.Fprintf(&b, "\t\t\tAny: []byte(%s),\n", strconv.Quote(string(c.Any)))
		}
		if c.IntPair != [2]int{} {
			fmt.Fprintf(&b, "\t\t\tIntPair: [2]int{%d, %d},\n", c.IntPair[0], c.IntPair[1])
		}
		if len(c.PatternSubs) > 0 {
			b.WriteString("\t\t\tPatternSubs: []jsonschema.RawPatternSub{\n")
			for _, ps := range c.PatternSubs {
				fmt.Fprintf(&b, "\t\t\t\t{Pattern: %s, Sub: %d},\n", strconv.Quote(ps.Pattern), ps.Sub)
			}
			b.WriteString("\t\t\t},\n")
		}
		if len(c.DepReq) > 0 {
			b.WriteString("\t\t\tDepReq: []jsonschema.RawDepReqEntry{\n")
			for _, dr := range c.DepReq {
				fmt.Fprintf(&b, "\t\t\t\t{Trigger: %s, Required: %s},\n", strconv.Quote(dr.Trigger), quoteSlice(dr.Required))
			}
			b.WriteString("\t\t\t},\n")
		}
		if len(c.DepSchemas) > 0 {
			b.WriteString("\t\t\tDepSchemas: []jsonschema.RawDepSchemaEntry{\n")
			for _, ds := range c.DepSchemas {
				fmt.Fprintf(&b, "\t\t\t\t{Trigger: %s, Sub: %d},\n", strconv.Quote(ds.Trigger), ds.Sub)
			}
			b.WriteString("\t\t\t},\n")
		}
		b.WriteString("\t\t},\n")
	}
	b.WriteString("\t},\n")
	return b.String()
}

func renderLocations(locs []jsonschema.RawLocation) string {
	var b strings.Builder
	b.WriteString("\tLocations: []jsonschema.RawLocation{\n")
	for _, l := range locs {
		fmt.Fprintf(&b, "\t\t{InstanceSegment: %s, SchemaPointer: %s, Keyword: %s},\n",
			strconv.Quote(l.InstanceSegment), strconv.Quote(l.SchemaPointer), strconv.Quote(l.Keyword))
	}
	b.WriteString("\t},\n")
	return b.String()
}

func renderSubroutines(subs []jsonschema.RawSubroutine) string {
	var b strings.Builder
	b.WriteString("\tSubroutines: []jsonschema.RawSubroutine{\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "\t\t{Entry: %d, Exit: %d, ResourceURI: %s},\n", s.Entry, s.Exit, strconv.Quote(s.ResourceURI))
	}
	b.WriteString("\t},\n")
	return b.String()
}

func renderDynamicTargets(targets map[string]int) string {
	if len(targets) == 0 {
		return ""
	}
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("\tDynamicTargets: map[string]int{\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "\t\t%s: %d,\n", strconv.Quote(k), targets[k])
	}
	b.WriteString("\t},\n")
	return b.String()
}

func quoteSlice(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func parseDraft(d string) (jsonschema.Dialect, error) {
	switch strings.TrimPrefix(strings.ToLower(d), "draft-") {
	case "", "2020-12":
		return jsonschema.Draft2020_12, nil
	case "2019-09":
		return jsonschema.Draft2019_09, nil
	case "7":
		return jsonschema.Draft7, nil
	case "6":
		return jsonschema.Draft6, nil
	case "4":
		return jsonschema.Draft4, nil
	default:
		return jsonschema.DialectUnknown, fmt.Errorf("unrecognized draft %q", d)
	}
}

func dialectConstName(d jsonschema.Dialect) string {
	switch d {
	case jsonschema.Draft4:
		return "jsonschema.Draft4"
	case jsonschema.Draft6:
		return "jsonschema.Draft6"
	case jsonschema.Draft7:
		return "jsonschema.Draft7"
	case jsonschema.Draft2019_09:
		return "jsonschema.Draft2019_09"
	case jsonschema.Draft2020_12:
		return "jsonschema.Draft2020_12"
	default:
		return "jsonschema.DialectUnknown"
	}
}
