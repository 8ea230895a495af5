package jsonschema

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/goccy/go-json"
)

// ProgramData is the portable, fully-exported mirror of a compiled Program:
// every field a generator can lay out as a Go composite literal. cmd/
// jsonschemagen emits one of these per embedded schema (spec §4.9
// "Build-time embedding"); NewValidatorFromData turns it back into a
// Validator at package init, with no schema parsing or compilation at
// runtime.
type ProgramData struct {
	Instructions    []RawInstruction
	Constants       []RawConstant
	Locations       []RawLocation
	Subroutines     []RawSubroutine
	EntryPoint      int
	Dialect         Dialect
	RootResourceURI string
	DynamicTargets  map[string]int
}

// RawInstruction mirrors Instruction with an exported, package-independent
// opcode number instead of the unexported opcode type.
type RawInstruction struct {
	Op   uint8
	A    uint32
	B    uint32
	Node uint32
}

// RawConstant mirrors constant. Only the fields relevant to Kind are
// populated; *regexp.Regexp and *big.Rat are re-derived from their source
// text on load rather than encoded directly, so the literal stays plain data.
type RawConstant struct {
	Kind        uint8
	Str         string
	Strs        []string
	Patterns    []string // constRegex: Patterns[0]; constPropExclusion: patternProperties regex sources
	RatNum      string
	RatDen      string
	Any         []byte // JSON-encoded, decoded with decodeJSON on load
	IntPair     [2]int
	PatternSubs []RawPatternSub
	DepReq      []RawDepReqEntry
	DepSchemas  []RawDepSchemaEntry
}

type RawPatternSub struct {
	Pattern string
	Sub     int
}

type RawDepReqEntry struct {
	Trigger  string
	Required []string
}

type RawDepSchemaEntry struct {
	Trigger string
	Sub     int
}

// RawLocation mirrors location.
type RawLocation struct {
	InstanceSegment string
	SchemaPointer   string
	Keyword         string
}

// RawSubroutine mirrors subroutine.
type RawSubroutine struct {
	Entry       int
	Exit        int
	ResourceURI string
}

// Encode converts a compiled Program into its portable form.
func (p *Program) Encode() (ProgramData, error) {
	data := ProgramData{
		Instructions:    make([]RawInstruction, len(p.Instructions)),
		Constants:       make([]RawConstant, len(p.Constants)),
		Locations:       make([]RawLocation, len(p.Locations)),
		Subroutines:     make([]RawSubroutine, len(p.Subroutines)),
		EntryPoint:      p.EntryPoint,
		Dialect:         p.Dialect,
		RootResourceURI: p.rootResourceURI,
	}
	if len(p.dynamicTargets) > 0 {
		data.DynamicTargets = make(map[string]int, len(p.dynamicTargets))
		for k, v := range p.dynamicTargets {
			data.DynamicTargets[k] = v
		}
	}
	for i, ins := range p.Instructions {
		data.Instructions[i] = RawInstruction{Op: uint8(ins.Op), A: ins.A, B: ins.B, Node: uint32(ins.Node)}
	}
	for i, c := range p.Constants {
		rc := RawConstant{Kind: uint8(c.kind), Str: c.str, Strs: c.strs, IntPair: c.intPair}
		if c.regex != nil {
			rc.Patterns = []string{c.regex.String()}
		}
		if len(c.regexes) > 0 {
			for _, re := range c.regexes {
				rc.Patterns = append(rc.Patterns, re.String())
			}
		}
		if c.rat != nil {
			rc.RatNum = c.rat.Num().String()
			rc.RatDen = c.rat.Denom().String()
		}
		if c.any != nil {
			enc, err := json.Marshal(c.any)
			if err != nil {
				return ProgramData{}, fmt.Errorf("encode constant %d: %w", i, err)
			}
			rc.Any = enc
		}
		for _, ps := range c.patternSubs {
			rc.PatternSubs = append(rc.PatternSubs, RawPatternSub{Pattern: ps.regex.String(), Sub: ps.sub})
		}
		for _, dr := range c.depReq {
			rc.DepReq = append(rc.DepReq, RawDepReqEntry{Trigger: dr.trigger, Required: dr.required})
		}
		for _, ds := range c.depSchemas {
			rc.DepSchemas = append(rc.DepSchemas, RawDepSchemaEntry{Trigger: ds.trigger, Sub: ds.sub})
		}
		data.Constants[i] = rc
	}
	for i, loc := range p.Locations {
		data.Locations[i] = RawLocation{InstanceSegment: loc.instanceSegment, SchemaPointer: loc.schemaPointer, Keyword: loc.keyword}
	}
	for i, sub := range p.Subroutines {
		data.Subroutines[i] = RawSubroutine{Entry: sub.entry, Exit: sub.exit, ResourceURI: sub.resourceURI}
	}
	return data, nil
}

// NewValidatorFromData reconstructs a Validator from a ProgramData literal,
// the path generated _schema.go files take instead of CompileJSON.
func NewValidatorFromData(data ProgramData) (*Validator, error) {
	prog := &Program{
		Instructions:    make([]Instruction, len(data.Instructions)),
		Constants:       make([]constant, len(data.Constants)),
		Locations:       make([]location, len(data.Locations)),
		Subroutines:     make([]subroutine, len(data.Subroutines)),
		EntryPoint:      data.EntryPoint,
		Dialect:         data.Dialect,
		rootResourceURI: data.RootResourceURI,
	}
	if len(data.DynamicTargets) > 0 {
		prog.dynamicTargets = make(map[string]int, len(data.DynamicTargets))
		for k, v := range data.DynamicTargets {
			prog.dynamicTargets[k] = v
		}
	}
	for i, ri := range data.Instructions {
		prog.Instructions[i] = Instruction{Op: opcode(ri.Op), A: ri.A, B: ri.B, Node: nodeID(ri.Node)}
	}
	for i, rc := range data.Constants {
		c := constant{kind: constKind(rc.Kind), str: rc.Str, strs: rc.Strs, intPair: rc.IntPair}
		switch c.kind {
		case constRegex:
			if len(rc.Patterns) > 0 {
				re, err := regexp.Compile(rc.Patterns[0])
				if err != nil {
					return nil, fmt.Errorf("decode constant %d pattern: %w", i, err)
				}
				c.regex = re
			}
		case constPropExclusion:
			for _, p := range rc.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, fmt.Errorf("decode constant %d pattern: %w", i, err)
				}
				c.regexes = append(c.regexes, re)
			}
		case constRat:
			num, okNum := new(big.Int).SetString(rc.RatNum, 10)
			den, okDen := new(big.Int).SetString(rc.RatDen, 10)
			if !okNum || !okDen {
				return nil, fmt.Errorf("decode constant %d: malformed rational", i)
			}
			c.rat = new(big.Rat).SetFrac(num, den)
		}
		if len(rc.Any) > 0 {
			v, err := decodeJSON(rc.Any)
			if err != nil {
				return nil, fmt.Errorf("decode constant %d value: %w", i, err)
			}
			c.any = v
		}
		for _, ps := range rc.PatternSubs {
			re, err := regexp.Compile(ps.Pattern)
			if err != nil {
				return nil, fmt.Errorf("decode constant %d patternSub: %w", i, err)
			}
			c.patternSubs = append(c.patternSubs, patternSub{regex: re, sub: ps.Sub})
		}
		for _, dr := range rc.DepReq {
			c.depReq = append(c.depReq, depReqEntry{trigger: dr.Trigger, required: dr.Required})
		}
		for _, ds := range rc.DepSchemas {
			c.depSchemas = append(c.depSchemas, depSchemaEntry{trigger: ds.Trigger, sub: ds.Sub})
		}
		prog.Constants[i] = c
	}
	for i, rl := range data.Locations {
		prog.Locations[i] = location{instanceSegment: rl.InstanceSegment, schemaPointer: rl.SchemaPointer, keyword: rl.Keyword}
	}
	for i, rs := range data.Subroutines {
		prog.Subroutines[i] = subroutine{entry: rs.Entry, exit: rs.Exit, resourceURI: rs.ResourceURI}
	}
	return &Validator{program: prog, opts: newOptions(WithDraft(data.Dialect))}, nil
}
