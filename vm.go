package jsonschema

import (
	"bytes"
	"encoding/base64"
	"math/big"
	"regexp"

	"github.com/goccy/go-json"
)

// execMode selects which of the three decoders share vm's run loop
// (spec §4.7): isValid records no errors, validate records every failure
// it reaches and Validate returns the first, iterErrors returns them all.
// All three run the same instructions: a failed check skips the rest of its
// own schema region, but combinators and iterating keywords run to the end.
type execMode int

const (
	modeIsValid execMode = iota
	modeValidate
	modeIterErrors
)

// frameKind tags what a vm frame's result feeds into once its schema
// region's SchemaEnd is reached.
type frameKind int

const (
	frameTop frameKind = iota
	frameCombinatorChild
	framePropertyChild
	frameCallTarget
	frameConditionalIf
	frameConditionalPart
)

type frame struct {
	kind frameKind
	ok   bool
	n    int // frameConditionalIf only: how many conds entries this instance owns

	// claimedProps/claimedItems record which object keys/array indices this
	// schema region (and any in-place applicator nested under it - allOf/
	// anyOf/oneOf branches, $ref/$dynamicRef targets, if/then/else) has
	// already validated, so a later unevaluatedProperties/unevaluatedItems
	// in the same region knows what's left over. Lazily allocated.
	claimedProps map[string]bool
	claimedItems map[int]bool

	// set only on framePropertyChild frames (properties/prefixItems/tuple
	// items), identifying which key/index this child claims in its parent
	// once it closes successfully.
	isProp  bool
	propKey string
	isItem  bool
	itemIdx int
}

// scopeKind mirrors spec §4.7's combinator scopes.
type scopeKind int

const (
	scopeAnd scopeKind = iota
	scopeOr
	scopeXor
	scopeNot
)

type combinatorScope struct {
	kind    scopeKind
	allOK   bool // AndValid accumulator
	anyOK   bool // OrSearching accumulator
	matches int  // XorEmpty count of branches that validated
}

// vm is one execution of a Program against one instance value. A fresh vm
// is created per Validator call; the Program and its constant pool are
// read-only and safely shared across concurrent vm instances.
type vm struct {
	prog *Program
	mode execMode

	values []any
	frames []frame
	scopes []combinatorScope
	calls  []int // return addresses for Call/DynamicCall
	conds  []bool

	// dynamicScope is the runtime chain of schema resource URIs entered so
	// far, outermost first. Seeded with the root resource and pushed/popped
	// alongside every Call/DynamicCall, it is what a $dynamicRef walks to
	// find its override target (spec §4.4) instead of the lexical nesting
	// the compiler sees.
	dynamicScope []string

	path []string // instance path segments entered so far, for error reporting

	errs          []*ValidationError
	stackOverflow bool
}

const maxCallDepth = 2000

func newVM(prog *Program, mode execMode, instance any) *vm {
	return &vm{
		prog:         prog,
		mode:         mode,
		values:       []any{instance},
		dynamicScope: []string{prog.rootResourceURI},
	}
}

func (m *vm) top() any { return m.values[len(m.values)-1] }

func (m *vm) pushValue(v any) { m.values = append(m.values, v) }

func (m *vm) popValue() { m.values = m.values[:len(m.values)-1] }

func (m *vm) pushFrame(k frameKind) { m.frames = append(m.frames, frame{kind: k, ok: true}) }

func (m *vm) pushCondFrame(n int) { m.frames = append(m.frames, frame{kind: frameConditionalIf, ok: true, n: n}) }

// failTop records a failure against the instance path built up so far and
// the schema pointer recorded for ip at compile time (spec §6), including
// through a $ref/$dynamicRef: ip always addresses the instruction actually
// performing the check, so a failure inside a referenced subroutine reports
// that subroutine's own schema pointer, not the $ref site that called it.
func (m *vm) failTop(ip int, kind ErrorKind, keyword string, params map[string]any) {
	if len(m.frames) > 0 {
		m.frames[len(m.frames)-1].ok = false
	}
	if m.mode == modeIsValid {
		return
	}
	var schemaTokens []string
	if ip >= 0 && ip < len(m.prog.Locations) {
		if sp := m.prog.Locations[ip].schemaPointer; sp != "" {
			schemaTokens = pointerTokens(sp)
		}
	}
	m.errs = append(m.errs, &ValidationError{
		Kind:           kind,
		instanceTokens: append([]string(nil), m.path...),
		schemaTokens:   schemaTokens,
		Instance:       m.top(),
		Message:        errorKindNames[kind] + " mismatch",
		Params:         params,
	})
}

// run executes the program from ip until the outermost frame closes,
// returning that frame's result.
func (m *vm) run(ip int) bool {
	m.pushFrame(frameTop)
	for {
		ins := m.prog.Instructions[ip]
		switch ins.Op {
		case opSchemaEnd:
			done, nextIP, result := m.handleSchemaEnd(ip)
			if done {
				return result
			}
			ip = nextIP
			continue
		case opReturn:
			return m.frames[len(m.frames)-1].ok
		case opPushScopeAnd:
			m.scopes = append(m.scopes, combinatorScope{kind: scopeAnd, allOK: true})
			ip++
			m.pushFrame(frameCombinatorChild)
			continue
		case opPushScopeOr:
			m.scopes = append(m.scopes, combinatorScope{kind: scopeOr})
			ip++
			m.pushFrame(frameCombinatorChild)
			continue
		case opPushScopeXor:
			m.scopes = append(m.scopes, combinatorScope{kind: scopeXor})
			ip++
			m.pushFrame(frameCombinatorChild)
			continue
		case opPushScopeNot:
			m.scopes = append(m.scopes, combinatorScope{kind: scopeNot})
			ip++
			m.pushFrame(frameCombinatorChild)
			continue
		case opPopScope:
			ip = m.handlePopScope(ip)
			continue
		case opPushProp:
			ip = m.handlePushProp(ip, ins)
			continue
		case opPushItemAt:
			ip = m.handlePushItemAt(ip, ins)
			continue
		case opPopValue:
			m.popValue()
			m.path = m.path[:len(m.path)-1]
			ip++
			continue
		case opItemsRest, opContains, opPatternProperties, opAdditionalProperties,
			opPropertyNames, opDependentRequired, opDependentSchemas, opContentSchema,
			opUnevaluatedProperties, opUnevaluatedItems:
			m.handleIterate(ip, ins)
			ip++
			continue
		case opCall, opDynamicCall:
			ip = m.handleCall(ip, ins)
			continue
		case opIfPrologue:
			for i := uint32(0); i < ins.A; i++ {
				m.conds = append(m.conds, true)
			}
			ip++
			m.pushCondFrame(int(ins.A))
			continue
		case opThenGate:
			cond := len(m.conds) > 0 && m.conds[len(m.conds)-1]
			if len(m.conds) > 0 {
				m.conds = m.conds[:len(m.conds)-1]
			}
			if !cond {
				ip = int(ins.A)
				continue
			}
			ip++
			m.pushFrame(frameConditionalPart)
			continue
		case opElseGate:
			cond := false
			if len(m.conds) > 0 {
				cond = m.conds[len(m.conds)-1]
				m.conds = m.conds[:len(m.conds)-1]
			}
			if cond {
				ip = int(ins.A)
				continue
			}
			ip++
			m.pushFrame(frameConditionalPart)
			continue
		case opFail:
			m.failTop(ip, KindBool, "", nil)
			ip++
			continue
		case opJumpIfInvalid:
			// Reached only defensively; Call/DynamicCall/check handlers
			// consume their paired JumpIfInvalid directly.
			ip++
			continue
		default:
			ip = m.handleCheck(ip, ins)
			continue
		}
	}
}

// handleSchemaEnd closes the current frame and routes its result to
// whatever construct opened it, per the design in DESIGN.md ("VM frame
// routing"). Returns done=true with the overall result once the top-level
// frame closes.
func (m *vm) handleSchemaEnd(ip int) (done bool, nextIP int, result bool) {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]

	switch f.kind {
	case frameTop:
		return true, 0, f.ok

	case frameCombinatorChild:
		s := &m.scopes[len(m.scopes)-1]
		switch s.kind {
		case scopeAnd:
			s.allOK = s.allOK && f.ok
			if f.ok {
				m.mergeClaims(f)
			}
		case scopeOr:
			s.anyOK = s.anyOK || f.ok
			if f.ok {
				m.mergeClaims(f)
			}
		case scopeXor:
			if f.ok {
				s.matches++
				m.mergeClaims(f)
			}
		case scopeNot:
			s.allOK = f.ok // reuse allOK to carry the single child's result; "not" never contributes claims
		}
		if m.prog.Instructions[ip+1].Op == opPopScope {
			return false, ip + 1, false
		}
		m.pushFrame(frameCombinatorChild)
		return false, ip + 1, false

	case framePropertyChild:
		if len(m.frames) > 0 {
			m.frames[len(m.frames)-1].ok = m.frames[len(m.frames)-1].ok && f.ok
			if f.ok {
				if f.isProp {
					m.claimProp(f.propKey)
				} else if f.isItem {
					m.claimItem(f.itemIdx)
				}
			}
		}
		// next instruction is always opPopValue
		return false, ip + 1, false

	case frameCallTarget:
		retAddr := m.calls[len(m.calls)-1]
		m.calls = m.calls[:len(m.calls)-1]
		m.dynamicScope = m.dynamicScope[:len(m.dynamicScope)-1]
		jumpIns := m.prog.Instructions[retAddr]
		if f.ok {
			m.mergeClaims(f)
			return false, retAddr + 1, false
		}
		if len(m.frames) > 0 {
			m.frames[len(m.frames)-1].ok = false
		}
		return false, int(jumpIns.A), false

	case frameConditionalIf, frameConditionalPart:
		if f.kind == frameConditionalIf {
			// opIfPrologue pushed exactly f.n placeholder entries for this
			// instance; only those (the current top of the stack) belong
			// to it, never an ancestor conditional's still-open entries.
			for i := len(m.conds) - f.n; i < len(m.conds); i++ {
				if i >= 0 {
					m.conds[i] = f.ok
				}
			}
			// the "if" schema's own evaluated annotations count regardless
			// of whether it matched (spec: then/else selection depends on
			// it, but its claims are not conditional on that outcome).
			m.mergeClaims(f)
		} else if len(m.frames) > 0 {
			m.frames[len(m.frames)-1].ok = m.frames[len(m.frames)-1].ok && f.ok
			if f.ok {
				m.mergeClaims(f)
			}
		}
		return false, ip + 1, false
	}
	return false, ip + 1, false
}

func (m *vm) handlePopScope(ip int) int {
	s := m.scopes[len(m.scopes)-1]
	m.scopes = m.scopes[:len(m.scopes)-1]

	var ok bool
	switch s.kind {
	case scopeAnd:
		ok = s.allOK
		if !ok {
			m.failTop(ip, KindAllOf, "allOf", nil)
		}
	case scopeOr:
		ok = s.anyOK
		if !ok {
			m.failTop(ip, KindAnyOf, "anyOf", nil)
		}
	case scopeXor:
		ok = s.matches == 1
		if s.matches == 0 {
			m.failTop(ip, KindOneOfNotValid, "oneOf", nil)
		} else if s.matches > 1 {
			m.failTop(ip, KindOneOfMultipleValid, "oneOf", map[string]any{"matches": s.matches})
		}
	case scopeNot:
		ok = !s.allOK
		if !ok {
			m.failTop(ip, KindNot, "not", nil)
		}
	}
	_ = ok
	return ip + 1
}

func (m *vm) handlePushProp(ip int, ins Instruction) int {
	key := m.prog.Constants[ins.A].str
	obj, isObj := m.top().(map[string]any)
	if !isObj {
		return int(ins.B)
	}
	val, present := obj[key]
	if !present {
		return int(ins.B)
	}
	m.pushValue(val)
	m.path = append(m.path, key)
	m.frames = append(m.frames, frame{kind: framePropertyChild, ok: true, isProp: true, propKey: key})
	return ip + 1
}

func (m *vm) handlePushItemAt(ip int, ins Instruction) int {
	arr, isArr := m.top().([]any)
	idx := int(ins.A)
	if !isArr || idx >= len(arr) {
		return int(ins.B)
	}
	m.pushValue(arr[idx])
	m.path = append(m.path, itoaIndex(idx))
	m.frames = append(m.frames, frame{kind: framePropertyChild, ok: true, isItem: true, itemIdx: idx})
	return ip + 1
}

// claimProp/claimItem mark key/index as evaluated on the current top
// frame, consulted by a later unevaluatedProperties/unevaluatedItems in the
// same schema region.
func (m *vm) claimProp(key string) {
	if len(m.frames) == 0 {
		return
	}
	f := &m.frames[len(m.frames)-1]
	if f.claimedProps == nil {
		f.claimedProps = map[string]bool{}
	}
	markString(f.claimedProps, key)
}

func (m *vm) claimItem(idx int) {
	if len(m.frames) == 0 {
		return
	}
	f := &m.frames[len(m.frames)-1]
	if f.claimedItems == nil {
		f.claimedItems = map[int]bool{}
	}
	markInt(f.claimedItems, idx)
}

// mergeClaims folds a closed in-place applicator's claims (an allOf/anyOf/
// oneOf branch, a $ref target, an if/then/else part) into the enclosing
// schema region's own frame, now exposed at the top of m.frames.
func (m *vm) mergeClaims(f frame) {
	if len(m.frames) == 0 || (len(f.claimedProps) == 0 && len(f.claimedItems) == 0) {
		return
	}
	top := &m.frames[len(m.frames)-1]
	if len(f.claimedProps) > 0 {
		if top.claimedProps == nil {
			top.claimedProps = map[string]bool{}
		}
		top.claimedProps = mergeStringSets(top.claimedProps, f.claimedProps)
	}
	if len(f.claimedItems) > 0 {
		if top.claimedItems == nil {
			top.claimedItems = map[int]bool{}
		}
		top.claimedItems = mergeIntSets(top.claimedItems, f.claimedItems)
	}
}

// runElement runs subroutine sub against val (pushed as the current focus
// value, with segment appended to the error path), popping both before
// returning. Used by every "apply this schema to many instance locations"
// keyword (items, contains, patternProperties, additionalProperties,
// propertyNames) via repeated nested calls into run() - each call pushes its
// own frameTop, so recursion here is safe regardless of how deep the
// surrounding schema's own frame stack already is.
func (m *vm) runElement(sub subroutine, segment string, val any) bool {
	m.pushValue(val)
	m.path = append(m.path, segment)
	ok := m.run(sub.entry)
	m.popValue()
	m.path = m.path[:len(m.path)-1]
	return ok
}

// handleIterate executes the "apply a schema to every matching instance
// location" keywords (items/contains/patternProperties/additionalProperties/
// propertyNames/dependentRequired/dependentSchemas). These run to
// completion rather than jumping through pendingJumps like simple checks -
// the same non-short-circuiting simplification combinators use, documented
// in DESIGN.md.
func (m *vm) handleIterate(ip int, ins Instruction) {
	switch ins.Op {
	case opItemsRest:
		arr, isArr := m.top().([]any)
		if !isArr {
			return
		}
		sub := m.prog.Subroutines[ins.A]
		ok := true
		for idx := int(ins.B); idx < len(arr); idx++ {
			if m.runElement(sub, itoaIndex(idx), arr[idx]) {
				m.claimItem(idx)
			} else {
				ok = false
			}
		}
		if !ok {
			m.markInvalid()
		}

	case opContains:
		arr, isArr := m.top().([]any)
		if !isArr {
			return
		}
		sub := m.prog.Subroutines[ins.A]
		pair := m.prog.Constants[ins.B].intPair
		min, max := pair[0], pair[1]
		matches := 0
		for idx := range arr {
			if m.runElement(sub, itoaIndex(idx), arr[idx]) {
				matches++
				m.claimItem(idx)
			}
		}
		if matches < min || (max >= 0 && matches > max) {
			m.failTop(ip, KindContains, "contains", map[string]any{"matches": matches, "minContains": min, "maxContains": max})
		}

	case opPatternProperties:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		subs := m.prog.Constants[ins.A].patternSubs
		ok := true
		for key, val := range obj {
			for _, ps := range subs {
				if !ps.regex.MatchString(key) {
					continue
				}
				if m.runElement(m.prog.Subroutines[ps.sub], key, val) {
					m.claimProp(key)
				} else {
					ok = false
				}
			}
		}
		if !ok {
			m.failTop(ip, KindPatternProperties, "patternProperties", nil)
		}

	case opAdditionalProperties:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		excl := m.prog.Constants[ins.A]
		var extra []string
		for key := range obj {
			if containsStr(excl.strs, key) || matchesAnyRegex(excl.regexes, key) {
				continue
			}
			extra = append(extra, key)
		}
		if len(extra) == 0 {
			return
		}
		if ins.B == noSubroutine {
			m.failTop(ip, KindAdditionalProperties, "additionalProperties", map[string]any{"additional": extra})
			return
		}
		sub := m.prog.Subroutines[ins.B]
		ok := true
		for _, key := range extra {
			if m.runElement(sub, key, obj[key]) {
				m.claimProp(key)
			} else {
				ok = false
			}
		}
		if !ok {
			m.failTop(ip, KindAdditionalProperties, "additionalProperties", map[string]any{"additional": extra})
		}

	case opPropertyNames:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		sub := m.prog.Subroutines[ins.A]
		ok := true
		for key := range obj {
			if !m.runElement(sub, key, key) {
				ok = false
			}
		}
		if !ok {
			m.failTop(ip, KindPropertyNames, "propertyNames", nil)
		}

	case opDependentRequired:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		entries := m.prog.Constants[ins.A].depReq
		failures := map[string]any{}
		ok := true
		for _, d := range entries {
			if _, present := obj[d.trigger]; !present {
				continue
			}
			missing := missingKeys(obj, d.required)
			if len(missing) > 0 {
				ok = false
				failures[d.trigger] = missing
			}
		}
		if !ok {
			m.failTop(ip, KindDependencies, "dependentRequired", map[string]any{"missing": failures})
		}

	case opDependentSchemas:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		entries := m.prog.Constants[ins.A].depSchemas
		ok := true
		for _, d := range entries {
			if _, present := obj[d.trigger]; !present {
				continue
			}
			if !m.run(m.prog.Subroutines[d.sub].entry) {
				ok = false
			}
		}
		if !ok {
			m.failTop(ip, KindDependencies, "dependentSchemas", nil)
		}

	case opContentSchema:
		s, isStr := m.top().(string)
		if !isStr {
			return
		}
		encoding := m.prog.Constants[ins.B].str
		raw := []byte(s)
		if encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				m.failTop(ip, KindCustom, "contentEncoding", map[string]any{"error": err.Error()})
				return
			}
			raw = decoded
		}
		var decoded any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			m.failTop(ip, KindCustom, "contentSchema", map[string]any{"error": err.Error()})
			return
		}
		sub := m.prog.Subroutines[ins.A]
		m.pushValue(decoded)
		ok := m.run(sub.entry)
		m.popValue()
		if !ok {
			m.failTop(ip, KindCustom, "contentSchema", nil)
		}

	case opUnevaluatedProperties:
		obj, isObj := m.top().(map[string]any)
		if !isObj {
			return
		}
		claimed := m.frames[len(m.frames)-1].claimedProps
		var extra []string
		for key := range obj {
			if !claimed[key] {
				extra = append(extra, key)
			}
		}
		if len(extra) == 0 {
			return
		}
		if ins.A == noSubroutine {
			m.failTop(ip, KindAdditionalProperties, "unevaluatedProperties", map[string]any{"additional": extra})
			return
		}
		sub := m.prog.Subroutines[ins.A]
		ok := true
		for _, key := range extra {
			if m.runElement(sub, key, obj[key]) {
				m.claimProp(key)
			} else {
				ok = false
			}
		}
		if !ok {
			m.failTop(ip, KindAdditionalProperties, "unevaluatedProperties", map[string]any{"additional": extra})
		}

	case opUnevaluatedItems:
		arr, isArr := m.top().([]any)
		if !isArr {
			return
		}
		claimed := m.frames[len(m.frames)-1].claimedItems
		var extra []int
		for idx := range arr {
			if !claimed[idx] {
				extra = append(extra, idx)
			}
		}
		if len(extra) == 0 {
			return
		}
		if ins.A == noSubroutine {
			m.markInvalid()
			return
		}
		sub := m.prog.Subroutines[ins.A]
		ok := true
		for _, idx := range extra {
			if m.runElement(sub, itoaIndex(idx), arr[idx]) {
				m.claimItem(idx)
			} else {
				ok = false
			}
		}
		if !ok {
			m.markInvalid()
		}
	}
}

func (m *vm) markInvalid() {
	if len(m.frames) > 0 {
		m.frames[len(m.frames)-1].ok = false
	}
}

func containsStr(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func matchesAnyRegex(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func (m *vm) handleCall(ip int, ins Instruction) int {
	if len(m.calls) >= maxCallDepth {
		m.stackOverflow = true
		if len(m.frames) > 0 {
			m.frames[len(m.frames)-1].ok = false
		}
		jumpIns := m.prog.Instructions[ip+1]
		return int(jumpIns.A)
	}
	subIdx := ins.A
	if ins.Op == opDynamicCall {
		subIdx = m.resolveDynamicCall(ins)
	}
	sub := m.prog.Subroutines[subIdx]
	m.calls = append(m.calls, ip)
	m.pushFrame(frameCallTarget)
	m.dynamicScope = append(m.dynamicScope, sub.resourceURI)
	return sub.entry
}

// resolveDynamicCall implements the $dynamicRef/$recursiveRef override (spec
// §4.4): walk the runtime dynamic scope from outermost (the initial schema
// resource) to innermost (the resource currently executing), and use the
// first one that declares a matching dynamic anchor instead of ins.B's
// statically-resolved default target. All candidate targets were compiled
// ahead of time into Program.dynamicTargets, so this never compiles
// mid-evaluation.
func (m *vm) resolveDynamicCall(ins Instruction) uint32 {
	name := m.prog.Constants[ins.A].str
	for _, uri := range m.dynamicScope {
		if idx, ok := m.prog.dynamicTargets[dynamicTargetKey(uri, name)]; ok {
			return uint32(idx)
		}
	}
	return ins.B
}

// handleCheck evaluates a simple (non-control-flow) instruction against
// the current focus value and consumes its paired JumpIfInvalid.
func (m *vm) handleCheck(ip int, ins Instruction) int {
	ok, kind, keyword, params := m.evalCheck(ins)
	jumpIns := m.prog.Instructions[ip+1]
	if ok {
		return ip + 2
	}
	m.failTop(ip, kind, keyword, params)
	return int(jumpIns.A)
}

func (m *vm) evalCheck(ins Instruction) (ok bool, kind ErrorKind, keyword string, params map[string]any) {
	v := m.top()
	switch ins.Op {
	case opTypeNull:
		return v == nil, KindType, "type", typeParams("null", v)
	case opTypeBool:
		_, isBool := v.(bool)
		return isBool, KindType, "type", typeParams("boolean", v)
	case opTypeInteger:
		return kindName(v) == "integer", KindType, "type", typeParams("integer", v)
	case opTypeNumber:
		name := kindName(v)
		return name == "number" || name == "integer", KindType, "type", typeParams("number", v)
	case opTypeString:
		_, isStr := v.(string)
		return isStr, KindType, "type", typeParams("string", v)
	case opTypeArray:
		_, isArr := v.([]any)
		return isArr, KindType, "type", typeParams("array", v)
	case opTypeObject:
		_, isObj := v.(map[string]any)
		return isObj, KindType, "type", typeParams("object", v)
	case opTypeMask:
		return typeMaskMatches(ins.A, v), KindType, "type", nil

	case opConstEq:
		return deepEqualJSON(v, m.prog.Constants[ins.A].any), KindConst, "const", nil
	case opEnumIn:
		values, _ := m.prog.Constants[ins.A].any.([]any)
		for _, cand := range values {
			if deepEqualJSON(v, cand) {
				return true, KindEnum, "enum", nil
			}
		}
		return false, KindEnum, "enum", nil

	case opMinF:
		f, isNum := numericValue(v)
		lim, _ := numericValue(m.prog.Constants[ins.A].any)
		return !isNum || f >= lim, KindMinimum, "minimum", map[string]any{"minimum": m.prog.Constants[ins.A].any}
	case opMaxF:
		f, isNum := numericValue(v)
		lim, _ := numericValue(m.prog.Constants[ins.A].any)
		return !isNum || f <= lim, KindMaximum, "maximum", map[string]any{"maximum": m.prog.Constants[ins.A].any}
	case opExclusiveMinF:
		f, isNum := numericValue(v)
		lim, _ := numericValue(m.prog.Constants[ins.A].any)
		return !isNum || f > lim, KindExclusiveMinimum, "exclusiveMinimum", map[string]any{"exclusiveMinimum": m.prog.Constants[ins.A].any}
	case opExclusiveMaxF:
		f, isNum := numericValue(v)
		lim, _ := numericValue(m.prog.Constants[ins.A].any)
		return !isNum || f < lim, KindExclusiveMaximum, "exclusiveMaximum", map[string]any{"exclusiveMaximum": m.prog.Constants[ins.A].any}
	case opMultipleOfRat:
		return evalMultipleOf(v, m.prog.Constants[ins.A].rat), KindMultipleOf, "multipleOf", nil

	case opMinLen:
		s, isStr := v.(string)
		return !isStr || runeLen(s) >= int(ins.A), KindMinLength, "minLength", map[string]any{"minLength": ins.A}
	case opMaxLen:
		s, isStr := v.(string)
		return !isStr || runeLen(s) <= int(ins.A), KindMaxLength, "maxLength", map[string]any{"maxLength": ins.A}
	case opMinMaxLen:
		s, isStr := v.(string)
		if !isStr {
			return true, KindMinLength, "", nil
		}
		n := runeLen(s)
		return n >= int(ins.A) && n <= int(ins.B), KindMinLength, "minLength/maxLength", nil
	case opPattern:
		s, isStr := v.(string)
		return !isStr || m.prog.Constants[ins.A].regex.MatchString(s), KindPattern, "pattern", map[string]any{"pattern": m.prog.Constants[ins.A].str}
	case opFormat:
		s, isStr := v.(string)
		name := m.prog.Constants[ins.A].str
		if !isStr {
			return true, KindFormat, "", nil
		}
		fn, known := Formats[name]
		if !known {
			return true, KindFormat, "", nil
		}
		return fn(s), KindFormat, "format", map[string]any{"format": name}

	case opMinItems:
		a, isArr := v.([]any)
		return !isArr || len(a) >= int(ins.A), KindMinItems, "minItems", map[string]any{"minItems": ins.A}
	case opMaxItems:
		a, isArr := v.([]any)
		return !isArr || len(a) <= int(ins.A), KindMaxItems, "maxItems", map[string]any{"maxItems": ins.A}
	case opUniqueItems:
		a, isArr := v.([]any)
		return !isArr || itemsUnique(a), KindUniqueItems, "uniqueItems", nil

	case opMinProperties:
		o, isObj := v.(map[string]any)
		return !isObj || len(o) >= int(ins.A), KindMinProperties, "minProperties", map[string]any{"minProperties": ins.A}
	case opMaxProperties:
		o, isObj := v.(map[string]any)
		return !isObj || len(o) <= int(ins.A), KindMaxProperties, "maxProperties", map[string]any{"maxProperties": ins.A}
	case opRequired:
		o, isObj := v.(map[string]any)
		if !isObj {
			return true, KindRequired, "", nil
		}
		missing := missingKeys(o, m.prog.Constants[ins.A].strs)
		return len(missing) == 0, KindRequired, "required", map[string]any{"missing": missing}
	}
	return true, KindCustom, "", nil
}

func typeParams(expected string, v any) map[string]any {
	return map[string]any{"expected": expected, "received": kindName(v)}
}

func typeMaskMatches(mask uint32, v any) bool {
	name := kindName(v)
	var op opcode
	switch name {
	case "null":
		op = opTypeNull
	case "boolean":
		op = opTypeBool
	case "integer":
		op = opTypeInteger
	case "number":
		op = opTypeNumber
	case "string":
		op = opTypeString
	case "array":
		op = opTypeArray
	case "object":
		op = opTypeObject
	default:
		return false
	}
	if mask&(1<<uint32(op)) != 0 {
		return true
	}
	if name == "integer" && mask&(1<<uint32(opTypeNumber)) != 0 {
		return true
	}
	return false
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		r, err := convertToBigRat(n)
		if err != nil {
			return 0, false
		}
		f, _ := r.Float64()
		return f, true
	}
	return 0, false
}

func evalMultipleOf(v any, divisor *big.Rat) bool {
	if divisor == nil {
		return true
	}
	n, ok := v.(json.Number)
	if !ok {
		return true
	}
	value := new(big.Rat)
	if _, ok := value.SetString(n.String()); !ok {
		return true
	}
	quotient := new(big.Rat).Quo(value, divisor)
	return quotient.IsInt()
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func itemsUnique(items []any) bool {
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if deepEqualJSON(items[i], items[j]) {
				return false
			}
		}
	}
	return true
}

func missingKeys(obj map[string]any, required []string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// deepEqualJSON compares two decoded JSON values per the JSON Schema
// equality rules: numbers compare by mathematical value regardless of
// json.Number representation, objects/arrays compare structurally.
func deepEqualJSON(a, b any) bool {
	an, aIsNum := a.(json.Number)
	bn, bIsNum := b.(json.Number)
	if aIsNum || bIsNum {
		af, aok := toRat(a, an, aIsNum)
		bf, bok := toRat(b, bn, bIsNum)
		if aok && bok {
			return af.Cmp(bf) == 0
		}
		return false
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqualJSON(v, bvv) {
				return false
			}
		}
		return true
	}
	return false
}

func toRat(v any, n json.Number, isNum bool) (*big.Rat, bool) {
	if isNum {
		r := new(big.Rat)
		_, ok := r.SetString(n.String())
		return r, ok
	}
	if f, ok := v.(float64); ok {
		return new(big.Rat).SetFloat64(f), true
	}
	return nil, false
}
