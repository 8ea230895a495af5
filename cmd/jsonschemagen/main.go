// Package main implements the jsonschemagen code generation tool.
// It scans a package for types decorated with a //jsonschema:embed marker
// comment, compiles the named schema file with the real compiler, and
// writes a sibling Go file containing the compiled Program as literal
// composite literals plus IsValid/Validate methods on the marked type.
//
// Usage:
//
//	jsonschemagen [flags] [packages...]
//
// Flags:
//
//	-suffix string     Output file suffix (default: "_schema.go")
//	-verbose          Verbose output
//	-dry-run          Preview generated code without writing files
//	-force            Overwrite existing generated files
package main

import (
	"flag"
	"fmt"
	"log"
)

var (
	outputSuffix = flag.String("suffix", "_schema.go", "Output file suffix")
	verbose      = flag.Bool("verbose", false, "Verbose output")
	dryRun       = flag.Bool("dry-run", false, "Preview generated code without writing files")
	force        = flag.Bool("force", false, "Overwrite existing generated files")
	help         = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	packages := flag.Args()
	if len(packages) == 0 {
		packages = []string{"."}
	}

	if *verbose {
		log.Printf("starting jsonschemagen code generation")
		log.Printf("target packages: %v", packages)
		log.Printf("output suffix: %s", *outputSuffix)
	}

	config := &GeneratorConfig{
		OutputSuffix: *outputSuffix,
		Verbose:      *verbose,
		DryRun:       *dryRun,
		Force:        *force,
	}

	generator, err := NewCodeGenerator(config)
	if err != nil {
		log.Fatalf("failed to create code generator: %v", err)
	}

	var hasErrors bool
	for _, pkg := range packages {
		if err := generator.ProcessPackage(pkg); err != nil {
			log.Printf("error processing package %s: %v", pkg, err)
			hasErrors = true
			continue
		}
	}

	if hasErrors {
		log.Fatalf("code generation completed with errors")
	}
	if *verbose {
		log.Printf("code generation completed successfully")
	}
}

func showHelp() {
	fmt.Println(`jsonschemagen - build-time JSON Schema embedding tool

Reads a schema file named by a //jsonschema:embed marker above a type
declaration, compiles it, and writes a sibling Go file containing the
compiled Program's tables as literal composite literals plus IsValid and
Validate methods on the marked type.

USAGE:
    jsonschemagen [flags] [packages...]

FLAGS:`)
	flag.PrintDefaults()
	fmt.Println(`
MARKER:
    //jsonschema:embed path="user.schema.json" draft="2020-12"
    type User struct {
        ID   string ` + "`json:\"id\"`" + `
        Name string ` + "`json:\"name\"`" + `
    }

    Add //go:generate jsonschemagen above the marker to regenerate on
    'go generate'; the schema path is listed there too so edits to the
    schema file itself are caught by tools that diff go:generate inputs.`)
}
