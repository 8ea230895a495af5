package jsonschema

// Dialect names a JSON Schema vocabulary generation. The IR builder and
// compiler both consult a Dialect's keyword table to decide which keywords
// introduce subresources and how $id/$ref/$dynamicRef are spelled.
type Dialect int

const (
	DialectUnknown Dialect = iota
	Draft4
	Draft6
	Draft7
	Draft2019_09
	Draft2020_12
)

func (d Dialect) String() string {
	switch d {
	case Draft4:
		return "draft4"
	case Draft6:
		return "draft6"
	case Draft7:
		return "draft7"
	case Draft2019_09:
		return "2019-09"
	case Draft2020_12:
		return "2020-12"
	default:
		return "unknown"
	}
}

// dialectByURI maps a $schema value to the Dialect it selects. Matching is
// by prefix, so a trailing "#" or "/" still matches; only the scheme listed
// for each dialect below (https or http) is recognised.
var dialectURIs = []struct {
	uri string
	d   Dialect
}{
	{"https://json-schema.org/draft/2020-12/schema", Draft2020_12},
	{"https://json-schema.org/draft/2019-09/schema", Draft2019_09},
	{"http://json-schema.org/draft-07/schema", Draft7},
	{"http://json-schema.org/draft-06/schema", Draft6},
	{"http://json-schema.org/draft-04/schema", Draft4},
}

func dialectByURI(schemaURI string) Dialect {
	for _, e := range dialectURIs {
		if len(schemaURI) >= len(e.uri) && schemaURI[:len(e.uri)] == e.uri {
			return e.d
		}
	}
	return DialectUnknown
}

// idKeyword returns the keyword this dialect uses to declare a resource's
// base URI: "id" pre-draft-6, "$id" from draft-6 on.
func (d Dialect) idKeyword() string {
	if d == Draft4 {
		return "id"
	}
	return "$id"
}

// refKeyword returns the keyword used for a plain reference. Draft 2019-09
// and 2020-12 keep "$ref" but add "$recursiveRef"/"$dynamicRef" alongside it.
func (d Dialect) refKeyword() string { return "$ref" }

// dynamicRefKeyword returns the dynamic-scope reference keyword for dialects
// that have one, "" otherwise. 2019-09 spells it $recursiveRef with
// $recursiveAnchor; 2020-12 renames both to $dynamicRef/$dynamicAnchor.
func (d Dialect) dynamicRefKeyword() string {
	switch d {
	case Draft2019_09:
		return "$recursiveRef"
	case Draft2020_12:
		return "$dynamicRef"
	default:
		return ""
	}
}

func (d Dialect) dynamicAnchorKeyword() string {
	switch d {
	case Draft2019_09:
		return "$recursiveAnchor"
	case Draft2020_12:
		return "$dynamicAnchor"
	default:
		return ""
	}
}

// defsKeyword returns the keyword used for inline schema definitions:
// "definitions" pre-2019-09, "$defs" from 2019-09 on. Compilers must still
// accept "definitions" as a plain IN_CHILD map in every dialect since many
// real schemas mix the two for back-compat.
func (d Dialect) defsKeyword() string {
	if d == Draft2019_09 || d == Draft2020_12 {
		return "$defs"
	}
	return "definitions"
}

// subresourceClass classifies how a keyword's value introduces subresources,
// per spec §4.3. The table is the single source of truth consulted by both
// the IR builder (walking subresources to build) and the resolver (deciding
// whether a pointer segment crosses a resource boundary).
type subresourceClass int

const (
	notSubresource subresourceClass = iota
	inValue                         // value itself is a schema
	inChildMap                      // value is a map of name -> schema
	inChildArray                    // value is an array of schemas
	special                        // items/dependencies: polymorphic
)

// subresourceClass returns the subresource class for keyword. The same
// table applies to every dialect d; items and dependencies are "special"
// because their value can be either a schema or an array/map form.
func (d Dialect) subresourceClass(keyword string) subresourceClass {
	switch keyword {
	case "not", "if", "then", "else", "propertyNames", "contains",
		"additionalProperties", "additionalItems", "unevaluatedProperties",
		"unevaluatedItems", "contentSchema":
		return inValue
	case "properties", "patternProperties", "dependentSchemas",
		"$defs", "definitions":
		return inChildMap
	case "allOf", "anyOf", "oneOf", "prefixItems":
		return inChildArray
	case "items", "dependencies":
		return special
	default:
		return notSubresource
	}
}

// inVocabularies lists the vocabulary URIs a dialect declares by default
// when a schema omits an explicit $vocabulary. Nothing in the engine calls
// it; unknown keywords are always treated as annotations (ignored).
func (d Dialect) inVocabularies() []string {
	switch d {
	case Draft2020_12:
		return []string{
			"https://json-schema.org/draft/2020-12/vocab/core",
			"https://json-schema.org/draft/2020-12/vocab/applicator",
			"https://json-schema.org/draft/2020-12/vocab/validation",
			"https://json-schema.org/draft/2020-12/vocab/format-annotation",
			"https://json-schema.org/draft/2020-12/vocab/content",
			"https://json-schema.org/draft/2020-12/vocab/meta-data",
			"https://json-schema.org/draft/2020-12/vocab/unevaluated",
		}
	case Draft2019_09:
		return []string{
			"https://json-schema.org/draft/2019-09/vocab/core",
			"https://json-schema.org/draft/2019-09/vocab/applicator",
			"https://json-schema.org/draft/2019-09/vocab/validation",
			"https://json-schema.org/draft/2019-09/vocab/format",
			"https://json-schema.org/draft/2019-09/vocab/content",
			"https://json-schema.org/draft/2019-09/vocab/meta-data",
		}
	default:
		return nil
	}
}
