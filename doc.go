// Package jsonschema compiles JSON Schema documents (Draft 4 through
// 2020-12) into a small bytecode Program and validates instances against it
// with a stack-based VM, instead of walking the schema tree at validation
// time.
//
// Credit to https://github.com/santhosh-tekuri/jsonschema for format validators.
package jsonschema
