// Package jsonschema compiles JSON Schema documents (Draft 4 through
// 2020-12) into a compact bytecode Program and executes that program
// against decoded JSON values, instead of walking the schema tree on every
// call. Build parses and resolves a schema once; the resulting Validator is
// immutable and safe to share across goroutines.
package jsonschema

import "fmt"

// Validator is the compiled, immutable result of Build. It wraps a Program
// together with the Registry it was resolved against, so IsValid/Validate/
// IterErrors never need to touch the network or re-parse the schema.
type Validator struct {
	program  *Program
	registry *Registry
	opts     *Options
}

// CompileJSON decodes raw schema bytes and compiles them, a convenience
// wrapper around decodeJSON + Build for callers who have a schema document
// but not yet a decoded value.
func CompileJSON(schemaJSON []byte, opts ...Option) (*Validator, error) {
	schema, err := decodeJSON(schemaJSON)
	if err != nil {
		return nil, newBuildError("", "", fmt.Errorf("%w: %v", ErrSchemaParse, err))
	}
	return Build(schema, opts...)
}

// IsValid reports whether instance satisfies the schema without building
// any error — the cheapest of the three entry points (spec §4.7 "is_valid").
func (v *Validator) IsValid(instance any) bool {
	m := newVM(v.program, modeIsValid, instance)
	return m.run(v.program.EntryPoint)
}

// IsValidJSON decodes raw JSON and reports whether it satisfies the schema.
func (v *Validator) IsValidJSON(instanceJSON []byte) (bool, error) {
	instance, err := decodeJSON(instanceJSON)
	if err != nil {
		return false, err
	}
	return v.IsValid(instance), nil
}

// Validate runs the instance through the schema and returns the first
// structured error encountered, or nil if it's valid (spec §4.7 "validate").
func (v *Validator) Validate(instance any) *ValidationError {
	m := newVM(v.program, modeValidate, instance)
	ok := m.run(v.program.EntryPoint)
	if ok {
		return nil
	}
	if m.stackOverflow {
		return &ValidationError{Kind: KindReference, StackOverflow: true, Message: "reference resolution exceeded the maximum recursion depth"}
	}
	if len(m.errs) == 0 {
		return &ValidationError{Kind: KindCustom, Message: "validation failed"}
	}
	return m.errs[0]
}

// IterErrors runs the instance through the schema collecting every error it
// can report without becoming unsound (spec §4.7 "iter_errors"): allOf
// continues past a failing branch, anyOf reports failure only once all
// branches failed, oneOf reports "no match" or "multiple matches".
func (v *Validator) IterErrors(instance any) []*ValidationError {
	m := newVM(v.program, modeIterErrors, instance)
	m.run(v.program.EntryPoint)
	return m.errs
}

// Dialect reports which draft the compiled program targets.
func (v *Validator) Dialect() Dialect { return v.program.Dialect }

// Program exposes the compiled Program backing this Validator, so callers
// like cmd/jsonschemagen can Encode it into a portable ProgramData literal
// (spec §4.9 "Build-time embedding") without re-running Build.
func (v *Validator) Program() *Program { return v.program }
