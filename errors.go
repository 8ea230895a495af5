package jsonschema

import (
	"errors"
	"fmt"
)

// === Build-time sentinel errors ===
// Grouped the way the teacher's errors.go groups its sentinels: a plain
// errors.New per failure mode, wrapped with fmt.Errorf("%w: ...") at the
// call site so callers can errors.Is against the category.
var (
	// ErrSchemaParse is returned when the raw schema document is not valid JSON.
	ErrSchemaParse = errors.New("schema parse failed")

	// ErrUnknownURI names a $ref base URI that is not registered and that no
	// retriever could supply. No code in this package returns it: the
	// compiler reports that case as ErrRetrieverFailure.
	ErrUnknownURI = errors.New("unknown uri")

	// ErrUnresolvableReference is returned when a $ref/$dynamicRef fragment
	// cannot be resolved against the registry.
	ErrUnresolvableReference = errors.New("unresolvable reference")

	// ErrUnresolvableAnchor is returned when an anchor name has no matching
	// $anchor/$dynamicAnchor in scope.
	ErrUnresolvableAnchor = errors.New("unresolvable anchor")

	// ErrPointerOutOfRange names a JSON Pointer fragment that walks past the
	// end of an array or into a non-existent object key. No code in this
	// package returns it: evalPointer reports that case as
	// ErrUnresolvableReference.
	ErrPointerOutOfRange = errors.New("json pointer out of range")

	// ErrCycleWithoutSubroutine names a $ref cycle that is not routed
	// through a subroutine Call. Every $ref compiles to a Call, and no code
	// in this package returns it.
	ErrCycleWithoutSubroutine = errors.New("ref cycle without subroutine")

	// ErrUnsupportedDialect names a $schema this engine does not implement.
	// Build does not return it: an unrecognised $schema falls back to the
	// WithDraft dialect, or to 2020-12 when none is set.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrInvalidKeywordValue is returned when a keyword's value has the
	// wrong JSON type for its dialect (e.g. "required" not an array).
	ErrInvalidKeywordValue = errors.New("invalid keyword value")

	// ErrRetrieverFailure is returned when a Retriever returns an error or
	// refuses a URI the compiler needed.
	ErrRetrieverFailure = errors.New("retriever failure")

	// ErrRegexCompilation is returned when a "pattern" value fails to
	// compile under the configured Regexp implementation.
	ErrRegexCompilation = errors.New("regex compilation failed")

	// ErrIPv6AddressNotEnclosed is returned by urlParse when a URI host
	// holding an IPv6 address is not wrapped in square brackets.
	ErrIPv6AddressNotEnclosed = errors.New("ipv6 address not enclosed in brackets")

	// ErrInvalidIPv6Address is returned by urlParse when a URI host holds
	// a malformed IPv6 address.
	ErrInvalidIPv6Address = errors.New("invalid ipv6 address")

	// ErrUnsupportedTypeForRat is returned when a numeric literal's JSON
	// type can't be converted to an exact big.Rat (e.g. a bool).
	ErrUnsupportedTypeForRat = errors.New("unsupported type for exact rational conversion")

	// ErrFailedToConvertToRat is returned when a literal parses as JSON
	// but its text form isn't a valid big.Rat (should not happen for
	// values that already round-tripped through the JSON decoder).
	ErrFailedToConvertToRat = errors.New("failed to convert value to rational")
)

// newReferenceResolutionError wraps a detail string as an
// ErrUnresolvableReference for use deep in resolver/pointer code where a
// *BuildError isn't available yet.
func newReferenceResolutionError(detail string) error {
	return fmt.Errorf("%w: %s", ErrUnresolvableReference, detail)
}

// BuildError is returned from Build/Compile when a schema cannot be turned
// into a Validator. It always wraps one of the sentinel errors above.
type BuildError struct {
	URI     string // base URI of the resource the failure occurred in, if known
	Pointer string // schema-relative JSON pointer to the offending keyword
	Err     error
}

func (e *BuildError) Error() string {
	if e.URI == "" && e.Pointer == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s#%s: %s", e.URI, e.Pointer, e.Err.Error())
}

func (e *BuildError) Unwrap() error { return e.Err }

func newBuildError(uri, pointer string, err error) *BuildError {
	return &BuildError{URI: uri, Pointer: pointer, Err: err}
}

// ErrorKind is the closed sum of validation failure kinds the VM can
// produce, matching spec.md §6 exactly.
type ErrorKind int

const (
	KindType ErrorKind = iota
	KindBool
	KindEnum
	KindConst
	KindMinimum
	KindMaximum
	KindExclusiveMinimum
	KindExclusiveMaximum
	KindMultipleOf
	KindMinLength
	KindMaxLength
	KindPattern
	KindMinItems
	KindMaxItems
	KindUniqueItems
	KindContains
	KindMinProperties
	KindMaxProperties
	KindRequired
	KindAdditionalProperties
	KindPatternProperties
	KindPropertyNames
	KindDependencies
	KindOneOfNotValid
	KindOneOfMultipleValid
	KindAnyOf
	KindAllOf
	KindNot
	KindIf
	KindFormat
	KindReference
	KindCustom
)

//nolint:gochecknoglobals
var errorKindNames = [...]string{
	"type", "bool", "enum", "const", "minimum", "maximum", "exclusiveMinimum",
	"exclusiveMaximum", "multipleOf", "minLength", "maxLength", "pattern",
	"minItems", "maxItems", "uniqueItems", "contains", "minProperties",
	"maxProperties", "required", "additionalProperties", "patternProperties",
	"propertyNames", "dependencies", "oneOfNotValid", "oneOfMultipleValid",
	"anyOf", "allOf", "not", "if", "format", "reference", "custom",
}

func (k ErrorKind) String() string {
	if int(k) < 0 || int(k) >= len(errorKindNames) {
		return "unknown"
	}
	return errorKindNames[k]
}

// ValidationError is the externally visible error shape from spec.md §6.
// InstancePath and SchemaPath are stored as token slices and rendered to
// "/a/b/0" pointer strings lazily, so the success path never allocates a
// string and the failure path only allocates once per reported error.
type ValidationError struct {
	Kind           ErrorKind
	instanceTokens []string
	schemaTokens   []string
	Instance       any
	SchemaValue    any
	StackOverflow  bool // set when Kind == KindReference and the cause was recursion depth
	Message        string
	Params         map[string]any
}

// InstancePath lazily renders the JSON Pointer into the validated instance.
func (e *ValidationError) InstancePath() string { return formatPointer(e.instanceTokens...) }

// SchemaPath lazily renders the JSON Pointer into the schema document.
func (e *ValidationError) SchemaPath() string { return formatPointer(e.schemaTokens...) }

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " validation failed"
	}
	return fmt.Sprintf("at %q: %s", e.InstancePath(), replaceParams(msg, e.Params))
}

// Is supports errors.Is(err, ErrValidationFailed) style checks without
// requiring callers to import the VM's error kinds.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ErrValidationFailed is a sentinel every *ValidationError matches via
// errors.Is, for callers that only care that *some* validation error
// occurred.
var ErrValidationFailed = errors.New("validation failed")

// MultiError aggregates every error produced by IterErrors, used when a
// caller wants a single error value (e.g. from a cobra command).
type MultiError struct {
	Errors []*ValidationError
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors (first: %s)", len(m.Errors), m.Errors[0].Error())
}
