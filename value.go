package jsonschema

import (
	"bytes"
	"math/big"

	"github.com/goccy/go-json"
)

// decodeJSON parses raw JSON bytes into the shared value shape the rest of
// the engine operates on: nil | bool | json.Number | string | []any |
// map[string]any. Numbers are kept as json.Number so the compiler and VM
// can classify them into PositiveInteger/NegativeInteger/Float without
// losing precision to an eager float64 conversion.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// numberKind classifies a json.Number the way the compiler's numeric
// specialisation does: integers that fit a machine word become Positive or
// NegativeInteger, everything else (including integers too big for
// uint64/int64) is treated as Float/Rat at the VM's discretion.
type numberKind int

const (
	numberFloat numberKind = iota
	numberPositiveInt
	numberNegativeInt
)

// classifyNumber inspects a json.Number and returns its kind plus the
// machine-word value when the kind is one of the integer variants.
func classifyNumber(n json.Number) (kind numberKind, u uint64, i int64) {
	s := n.String()
	if bi, ok := new(big.Int).SetString(s, 10); ok {
		if bi.Sign() >= 0 {
			if bi.IsUint64() {
				return numberPositiveInt, bi.Uint64(), 0
			}
		} else if bi.IsInt64() {
			return numberNegativeInt, 0, bi.Int64()
		}
	}
	return numberFloat, 0, 0
}

// asFloat converts a json.Number to float64 for the generic numeric path;
// callers on the fast path should prefer classifyNumber + a *big.Rat
// comparison when exactness matters (multipleOf on fractional literals).
func asFloat(n json.Number) (float64, bool) {
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// isIntegerValued reports whether a float64 (or the float64 view of a
// json.Number) represents a mathematical integer — drafts >= 6 treat
// integer-valued floats (e.g. 2.0) as satisfying "type": "integer".
func isIntegerValued(f float64) bool {
	return f == float64(int64(f)) || f == float64(uint64(f))
}

// kindName returns the JSON Schema type name for a decoded value, following
// the same switch shape the teacher's getDataType used, generalised to the
// six JSON Schema primitive names plus "integer".
func kindName(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		kind, _, _ := classifyNumber(val)
		if kind != numberFloat {
			return "integer"
		}
		if f, ok := asFloat(val); ok && isIntegerValued(f) {
			return "integer"
		}
		return "number"
	case float64:
		if isIntegerValued(val) {
			return "integer"
		}
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
