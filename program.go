package jsonschema

import (
	"math/big"
	"regexp"
)

// constKind tags the payload type stored at a given constant pool slot.
type constKind uint8

const (
	constString constKind = iota
	constStringSet   // enum / required key list
	constRegex
	constRat
	constAny          // arbitrary decoded JSON value, used by ConstEq/EnumIn
	constIntPair      // contains' (minContains, maxContains)
	constPropExclusion // additionalProperties' declared names + patternProperties regexes
	constPatternSubs  // patternProperties' (regex, subroutine) pairs
	constDepReq       // dependentRequired's (trigger, required keys) pairs
	constDepSchemas   // dependentSchemas' (trigger, subroutine) pairs
)

// patternSub pairs a patternProperties regex with the subroutine compiled
// from its schema.
type patternSub struct {
	regex *regexp.Regexp
	sub   int
}

// depReqEntry is one dependentRequired/dependencies trigger -> required-keys
// pair.
type depReqEntry struct {
	trigger  string
	required []string
}

// depSchemaEntry is one dependentSchemas/dependencies trigger -> subroutine
// pair.
type depSchemaEntry struct {
	trigger string
	sub     int
}

// noSubroutine marks an additionalProperties/unevaluatedProperties/
// unevaluatedItems operand as
// "false" (disallowed) rather than a schema to apply.
const noSubroutine = ^uint32(0)

// constant is one entry of a Program's constant pool. Instructions carry a
// uint32 index into Constants rather than embedding variable-size payloads,
// keeping Instruction fixed-size.
type constant struct {
	kind       constKind
	str        string
	strs       []string
	regex      *regexp.Regexp
	regexes    []*regexp.Regexp
	rat        *big.Rat
	any        any
	intPair    [2]int
	patternSubs []patternSub
	depReq     []depReqEntry
	depSchemas []depSchemaEntry
}

// location is the schema-relative and human-readable detail recorded for
// one instruction, consulted only when that instruction's check fails.
// Keeping this parallel to, rather than inline in, Instruction means the
// success path never touches it.
type location struct {
	instanceSegment string // "" unless this instruction descends the instance (PushProp/array iter)
	schemaPointer   string // full pointer from schema root to the keyword this instruction lowers
	keyword         string
}

// subroutine is one compiled $ref/$dynamicRef target: an instruction range
// within the same Program, entered via Call/DynamicCall and left via
// Return. Compiling every distinct (uri, pointer) target exactly once, and
// caching the mapping in compiler.subroutinesByKey, is what makes cyclic schemas
// terminate (spec §4.6 "Sub-routines").
type subroutine struct {
	entry int
	exit  int
	// resourceURI is the base URI of the resource this subroutine's schema
	// belongs to, pushed onto the VM's runtime dynamic scope stack for the
	// duration of the call so a nested $dynamicRef can see it (spec §4.4).
	resourceURI string
}

// Program is the compiled artifact Build returns wrapped in a Validator. It
// is immutable and safe to share across goroutines once constructed, and is
// exactly what the build-time embedding tool serialises as a data table
// (spec §4.9).
type Program struct {
	Instructions []Instruction
	Constants    []constant
	Locations    []location // parallel to Instructions; same length
	Subroutines  []subroutine
	EntryPoint   int
	Dialect      Dialect
	arena        *arena

	// rootResourceURI is the base URI of the schema Build was called with,
	// pushed onto the VM's dynamic scope stack before EntryPoint runs.
	rootResourceURI string

	// dynamicTargets maps a (resourceURI, $dynamicAnchor name) pair, encoded
	// via dynamicTargetKey, to the subroutine compiled for that resource's
	// declaration of the anchor. Populated for every dynamic anchor reachable
	// in this Program regardless of whether it is ever the override winner,
	// so a runtime $dynamicRef walking the scope stack (spec §4.4) never
	// needs to compile anything mid-evaluation.
	dynamicTargets map[string]int
}

// dynamicTargetKey is the lookup key into Program.dynamicTargets.
func dynamicTargetKey(resourceURI, name string) string { return resourceURI + "\x00" + name }

func (p *Program) addConstant(c constant) uint32 {
	p.Constants = append(p.Constants, c)
	return uint32(len(p.Constants) - 1)
}

func (p *Program) emit(ins Instruction, loc location) int {
	if loc.schemaPointer == "" && ins.Node != nilNode && p.arena != nil {
		tokens := p.arena.pathFromRoot(ins.Node)
		if loc.keyword != "" {
			tokens = append(tokens, loc.keyword)
		}
		loc.schemaPointer = formatPointer(tokens...)
	}
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, ins)
	p.Locations = append(p.Locations, loc)
	return idx
}

// patchJumpTarget backfills a forward jump's operand once the target
// address is known, used for JumpIfInvalid/JumpIfValid emitted before the
// body they guard has been compiled.
func (p *Program) patchJumpTarget(instructionIndex int, target int) {
	p.Instructions[instructionIndex].A = uint32(target)
}
