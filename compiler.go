package jsonschema

import (
	"fmt"
	"regexp"
	"sort"
)

// Options configures a Build call. Constructed via the functional With*
// setters, mirroring the teacher's fluent Compiler configuration.
type Options struct {
	draft           Dialect
	baseURI         string
	registry        *Registry
	retriever       Retriever
	validateFormats bool
	customFormats   map[string]func(any) bool
	keywords        map[string]CustomKeyword
}

// CustomKeyword is the function type WithKeyword accepts. WithKeyword stores
// it in Options under the keyword name; the compiler emits no instruction
// for it, so a registered keyword does not take part in validation.
type CustomKeyword func(value any, instance any) (bool, map[string]any)

// Option mutates Options; newOptions applies a set of them over sane
// defaults (draft=auto-detect, no retriever, format assertion on).
type Option func(*Options)

func WithDraft(d Dialect) Option { return func(o *Options) { o.draft = d } }

func WithBaseURI(uri string) Option { return func(o *Options) { o.baseURI = uri } }

func WithRegistry(reg *Registry) Option { return func(o *Options) { o.registry = reg } }

func WithRetriever(r Retriever) Option { return func(o *Options) { o.retriever = r } }

func WithValidateFormats(v bool) Option { return func(o *Options) { o.validateFormats = v } }

func WithFormat(name string, fn func(any) bool) Option {
	return func(o *Options) {
		if o.customFormats == nil {
			o.customFormats = make(map[string]func(any) bool)
		}
		o.customFormats[name] = fn
	}
}

func WithKeyword(name string, fn CustomKeyword) Option {
	return func(o *Options) {
		if o.keywords == nil {
			o.keywords = make(map[string]CustomKeyword)
		}
		o.keywords[name] = fn
	}
}

func newOptions(opts ...Option) *Options {
	o := &Options{draft: DialectUnknown, validateFormats: true}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// compiler holds the mutable state of one Build call: the arena being
// filled, the program being emitted into, and the $ref subroutine cache
// that makes cyclic schemas terminate (spec §4.6).
type compiler struct {
	arena            *arena
	program          *Program
	registry         *Registry
	resolver         *resolver
	opts             *Options
	subroutinesByKey map[string]int // sourceKey -> subroutine index, once compiled
	inProgress       map[string]int // sourceKey -> subroutine index, while still compiling (cycle support)
}

// Build compiles a decoded schema document into a Program, following
// spec §4.6. schema may be a map[string]any (object schema) or a bool.
func Build(schema any, opts ...Option) (*Validator, error) {
	o := newOptions(opts...)

	dialect := o.draft
	baseURI := o.baseURI
	if m, ok := schema.(map[string]any); ok {
		if s, _ := m["$schema"].(string); s != "" {
			if d := dialectByURI(s); d != DialectUnknown {
				dialect = d
			}
		}
		if id, _ := m["$id"].(string); id != "" && baseURI == "" {
			baseURI = id
		} else if id, _ := m["id"].(string); id != "" && baseURI == "" {
			baseURI = id
		}
	}
	if dialect == DialectUnknown {
		dialect = Draft2020_12
	}
	if baseURI == "" {
		baseURI = "urn:jsonschema:root"
	}

	reg := o.registry
	if reg == nil {
		reg = newRegistry(o.retriever)
	}
	res := &Resource{URI: baseURI, Document: schema, Dialect: dialect}
	next, err := reg.TryWithResource(baseURI, res)
	if err != nil {
		return nil, newBuildError(baseURI, "", err)
	}
	reg = next

	a := newArena()
	rootID, err := buildIR(a, reg, res, schema, nilNode, "")
	if err != nil {
		return nil, newBuildError(baseURI, "", err)
	}

	prog := &Program{Dialect: dialect, arena: a}
	c := &compiler{
		arena:            a,
		program:          prog,
		registry:         reg,
		resolver:         newResolver(reg),
		opts:             o,
		subroutinesByKey: make(map[string]int),
		inProgress:       make(map[string]int),
	}

	entry, err := c.compileSchema(rootID, baseURI, (*scope)(nil).push(baseURI))
	if err != nil {
		return nil, newBuildError(baseURI, "", err)
	}
	prog.EntryPoint = entry
	prog.emit(Instruction{Op: opReturn}, location{})
	prog.rootResourceURI = baseURI

	if err := c.compileDynamicTargets(); err != nil {
		return nil, newBuildError(baseURI, "", err)
	}

	return &Validator{program: prog, registry: reg, opts: o}, nil
}

// compileDynamicTargets compiles every $dynamicAnchor reachable in the
// registry into its own subroutine and records it in prog.dynamicTargets, so
// a runtime $dynamicRef (spec §4.4) never needs to compile anything
// mid-evaluation. Iterates c.registry.dynamic in a deterministic order
// (sorted by baseURI then name) since Go map iteration order is randomized
// and would otherwise make compiled instruction order non-reproducible
// across identical inputs.
func (c *compiler) compileDynamicTargets() error {
	keys := make([]anchorKey, 0, len(c.registry.dynamic))
	for ak := range c.registry.dynamic {
		keys = append(keys, ak)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].baseURI != keys[j].baseURI {
			return keys[i].baseURI < keys[j].baseURI
		}
		return keys[i].name < keys[j].name
	})

	if len(keys) > 0 {
		c.program.dynamicTargets = make(map[string]int, len(keys))
	}
	for _, ak := range keys {
		pointer := c.registry.dynamic[ak]
		idx, err := c.compileDynamicTarget(ak.baseURI, pointer)
		if err != nil {
			return err
		}
		c.program.dynamicTargets[dynamicTargetKey(ak.baseURI, ak.name)] = idx
	}
	return nil
}

// compileSchema lowers the schema at node id, emitting instructions into
// c.program and returning the index of its first instruction. baseURI is
// the resource-relative base the node's $ref/$id are resolved against.
func (c *compiler) compileSchema(id nodeID, baseURI string, sc *scope) (int, error) {
	n := c.arena.get(id)
	start := len(c.program.Instructions)

	if b, ok := n.value.(bool); ok {
		if !b {
			c.program.emit(Instruction{Op: opFail, Node: id}, location{schemaPointer: "", keyword: ""})
		}
		c.program.emit(Instruction{Op: opSchemaEnd, Node: id}, location{})
		return start, nil
	}

	obj, ok := n.value.(map[string]any)
	if !ok {
		c.program.emit(Instruction{Op: opSchemaEnd, Node: id}, location{})
		return start, nil
	}

	dialect := c.program.Dialect
	if idv, _ := obj[dialect.idKeyword()].(string); idv != "" {
		baseURI = resolveRelativeURI(baseURI, idv)
		sc = sc.push(baseURI)
	}

	var pendingJumps []int

	emitCheck := func(ins Instruction, loc location) {
		ins.Node = id
		c.program.emit(ins, loc)
		j := c.program.emit(Instruction{Op: opJumpIfInvalid}, loc)
		pendingJumps = append(pendingJumps, j)
	}

	if err := c.compileRef(obj, id, baseURI, sc, &pendingJumps); err != nil {
		return 0, err
	}
	c.compileType(obj, emitCheck)
	c.compileEnumConst(obj, emitCheck)
	if err := c.compileNumeric(obj, emitCheck); err != nil {
		return 0, err
	}
	if err := c.compileString(obj, emitCheck); err != nil {
		return 0, err
	}
	if err := c.compileArray(obj, id, baseURI, sc, emitCheck); err != nil {
		return 0, err
	}
	if err := c.compileObject(obj, id, baseURI, sc, emitCheck); err != nil {
		return 0, err
	}
	if err := c.compileCombinators(obj, id, baseURI, sc); err != nil {
		return 0, err
	}
	if err := c.compileConditional(obj, id, baseURI, sc); err != nil {
		return 0, err
	}
	if err := c.compileContent(obj, id, baseURI, sc); err != nil {
		return 0, err
	}
	// unevaluatedProperties/unevaluatedItems must run last: they consult
	// this region's accumulated claimed-keys/claimed-indices set, which
	// properties/patternProperties/additionalProperties/items/contains and
	// every in-place applicator above (allOf/anyOf/oneOf/if-then-else/$ref)
	// populate as they execute.
	if err := c.compileUnevaluatedProperties(obj, id, baseURI, sc); err != nil {
		return 0, err
	}
	if err := c.compileUnevaluatedItems(obj, id, baseURI, sc); err != nil {
		return 0, err
	}

	end := c.program.emit(Instruction{Op: opSchemaEnd, Node: id}, location{})
	for _, j := range pendingJumps {
		c.program.patchJumpTarget(j, end)
	}
	return start, nil
}

func (c *compiler) compileType(obj map[string]any, emit func(Instruction, location)) {
	switch t := obj["type"].(type) {
	case string:
		op, ok := typeOpcode(t)
		if ok {
			emit(Instruction{Op: op}, location{keyword: "type"})
		}
	case []any:
		var mask uint32
		for _, v := range t {
			name, _ := v.(string)
			if bit, ok := typeBit(name); ok {
				mask |= bit
			}
		}
		emit(Instruction{Op: opTypeMask, A: mask}, location{keyword: "type"})
	}
}

func typeOpcode(t string) (opcode, bool) {
	switch t {
	case "null":
		return opTypeNull, true
	case "boolean":
		return opTypeBool, true
	case "integer":
		return opTypeInteger, true
	case "number":
		return opTypeNumber, true
	case "string":
		return opTypeString, true
	case "array":
		return opTypeArray, true
	case "object":
		return opTypeObject, true
	}
	return opNop, false
}

func typeBit(t string) (uint32, bool) {
	op, ok := typeOpcode(t)
	if !ok {
		return 0, false
	}
	return 1 << uint32(op), true
}

func (c *compiler) compileEnumConst(obj map[string]any, emit func(Instruction, location)) {
	if cv, ok := obj["const"]; ok {
		idx := c.program.addConstant(constant{kind: constAny, any: cv})
		emit(Instruction{Op: opConstEq, A: idx}, location{keyword: "const"})
		return
	}
	if ev, ok := obj["enum"].([]any); ok {
		idx := c.program.addConstant(constant{kind: constAny, any: ev})
		if len(ev) == 1 {
			single := c.program.addConstant(constant{kind: constAny, any: ev[0]})
			emit(Instruction{Op: opConstEq, A: single}, location{keyword: "enum"})
			return
		}
		emit(Instruction{Op: opEnumIn, A: idx}, location{keyword: "enum"})
	}
}

func (c *compiler) compileNumeric(obj map[string]any, emit func(Instruction, location)) error {
	if v, ok := obj["minimum"]; ok {
		f, err := numLiteral(v)
		if err != nil {
			return err
		}
		idx := c.program.addConstant(constant{kind: constAny, any: f})
		emit(Instruction{Op: opMinF, A: idx}, location{keyword: "minimum"})
	}
	if v, ok := obj["maximum"]; ok {
		f, err := numLiteral(v)
		if err != nil {
			return err
		}
		idx := c.program.addConstant(constant{kind: constAny, any: f})
		emit(Instruction{Op: opMaxF, A: idx}, location{keyword: "maximum"})
	}
	// exclusiveMinimum/Maximum: a boolean true (the Draft4 form) takes its limit
	// from the minimum/maximum sibling; a number (the draft6+ form) is the limit
	// itself. Both forms are accepted in every dialect (SPEC_FULL §9).
	if v, ok := obj["exclusiveMinimum"]; ok {
		if err := c.compileExclusive(obj, v, "minimum", "exclusiveMinimum", opExclusiveMinF, opMinF, emit); err != nil {
			return err
		}
	}
	if v, ok := obj["exclusiveMaximum"]; ok {
		if err := c.compileExclusive(obj, v, "maximum", "exclusiveMaximum", opExclusiveMaxF, opMaxF, emit); err != nil {
			return err
		}
	}
	if v, ok := obj["multipleOf"]; ok {
		f, err := numLiteral(v)
		if err != nil {
			return err
		}
		rat := NewRat(v)
		idx := c.program.addConstant(constant{kind: constRat, rat: rat.Rat, any: f})
		emit(Instruction{Op: opMultipleOfRat, A: idx}, location{keyword: "multipleOf"})
	}
	return nil
}

func (c *compiler) compileExclusive(obj map[string]any, v any, numericSibling, keyword string, exclOp, plainOp opcode, emit func(Instruction, location)) error {
	if b, isBool := v.(bool); isBool {
		if !b {
			return nil
		}
		sib, ok := obj[numericSibling]
		if !ok {
			return fmt.Errorf("%w: %s=true requires sibling %s", ErrInvalidKeywordValue, keyword, numericSibling)
		}
		f, err := numLiteral(sib)
		if err != nil {
			return err
		}
		idx := c.program.addConstant(constant{kind: constAny, any: f})
		emit(Instruction{Op: exclOp, A: idx}, location{keyword: keyword})
		return nil
	}
	f, err := numLiteral(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidKeywordValue, keyword, err)
	}
	idx := c.program.addConstant(constant{kind: constAny, any: f})
	emit(Instruction{Op: exclOp, A: idx}, location{keyword: keyword})
	_ = plainOp
	return nil
}

func numLiteral(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		if jn, ok := v.(interface{ Float64() (float64, error) }); ok {
			return jn.Float64()
		}
	}
	return 0, fmt.Errorf("%w: expected a number", ErrInvalidKeywordValue)
}

func (c *compiler) compileString(obj map[string]any, emit func(Instruction, location)) error {
	minL, hasMin := obj["minLength"]
	maxL, hasMax := obj["maxLength"]
	if hasMin && hasMax {
		a, _ := numLiteral(minL)
		b, _ := numLiteral(maxL)
		emit(Instruction{Op: opMinMaxLen, A: uint32(a), B: uint32(b)}, location{keyword: "minLength/maxLength"})
	} else {
		if hasMin {
			a, _ := numLiteral(minL)
			emit(Instruction{Op: opMinLen, A: uint32(a)}, location{keyword: "minLength"})
		}
		if hasMax {
			b, _ := numLiteral(maxL)
			emit(Instruction{Op: opMaxLen, A: uint32(b)}, location{keyword: "maxLength"})
		}
	}
	if p, ok := obj["pattern"].(string); ok {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: pattern %q: %v", ErrRegexCompilation, p, err)
		}
		idx := c.program.addConstant(constant{kind: constRegex, regex: re, str: p})
		emit(Instruction{Op: opPattern, A: idx}, location{keyword: "pattern"})
	}
	if f, ok := obj["format"].(string); ok && c.opts.validateFormats {
		idx := c.program.addConstant(constant{kind: constString, str: f})
		emit(Instruction{Op: opFormat, A: idx}, location{keyword: "format"})
	}
	return nil
}

func (c *compiler) compileArray(obj map[string]any, id nodeID, baseURI string, sc *scope, emit func(Instruction, location)) error {
	if v, ok := obj["minItems"]; ok {
		n, _ := numLiteral(v)
		emit(Instruction{Op: opMinItems, A: uint32(n)}, location{keyword: "minItems"})
	}
	if v, ok := obj["maxItems"]; ok {
		n, _ := numLiteral(v)
		emit(Instruction{Op: opMaxItems, A: uint32(n)}, location{keyword: "maxItems"})
	}
	if b, ok := obj["uniqueItems"].(bool); ok && b {
		emit(Instruction{Op: opUniqueItems}, location{keyword: "uniqueItems"})
	}

	tupleLen, err := c.compileTupleItems(obj, id, baseURI, sc)
	if err != nil {
		return err
	}

	if err := c.compileItemsRest(obj, id, baseURI, sc, tupleLen); err != nil {
		return err
	}

	if v, ok := obj["contains"]; ok {
		_ = v
		if err := c.compileContains(obj, id, baseURI, sc); err != nil {
			return err
		}
	}
	return nil
}

// compileTupleItems emits PushItemAt/PopValue pairs for prefixItems (2020-12)
// or array-form "items" (Draft4-7/2019-09 tuple validation), returning how
// many leading positions were consumed by a fixed schema so the caller knows
// where the "rest" schema (if any) should start.
func (c *compiler) compileTupleItems(obj map[string]any, id nodeID, baseURI string, sc *scope) (int, error) {
	prefix := "prefixItems/"
	if _, ok := obj["prefixItems"]; !ok {
		if _, isArr := obj["items"].([]any); isArr {
			prefix = "items/"
		} else {
			return 0, nil
		}
	}
	n := 0
	for _, childID := range c.arena.children(id) {
		child := c.arena.get(childID)
		if len(child.edgeLabel) <= len(prefix) || child.edgeLabel[:len(prefix)] != prefix {
			continue
		}
		idx, ok := parseIndex(child.edgeLabel[len(prefix):])
		if !ok {
			continue
		}
		push := c.program.emit(Instruction{Op: opPushItemAt, A: uint32(idx), Node: id}, location{keyword: prefix[:len(prefix)-1], instanceSegment: itoaIndex(idx)})
		if _, err := c.compileSchema(childID, baseURI, sc); err != nil {
			return 0, err
		}
		c.program.emit(Instruction{Op: opPopValue}, location{})
		after := len(c.program.Instructions)
		c.program.Instructions[push].B = uint32(after)
		n++
	}
	return n, nil
}

// compileItemsRest lowers the schema applied to every array element from
// startIndex on: "items" itself when prefixItems is present (2020-12), or
// "additionalItems" when the tuple form is the old array-of-schemas "items"
// (Draft4-7/2019-09). A bare "items" with no tuple form applies to every
// element (startIndex 0).
func (c *compiler) compileItemsRest(obj map[string]any, id nodeID, baseURI string, sc *scope, tupleLen int) error {
	var restChild nodeID
	var keyword string
	if tupleLen > 0 {
		if _, isArr := obj["items"].([]any); isArr {
			keyword = "additionalItems"
		} else if _, ok := obj["prefixItems"]; ok {
			keyword = "items"
		}
	} else if _, ok := obj["items"]; ok {
		if _, isArr := obj["items"].([]any); !isArr {
			keyword = "items"
		}
	}
	if keyword == "" {
		return nil
	}
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == keyword {
			restChild = childID
			break
		}
	}
	if restChild == nilNode {
		return nil
	}
	if b, ok := c.arena.get(restChild).value.(bool); ok && !b {
		// "items"/"additionalItems": false -> no elements allowed past tupleLen.
		c.program.emit(Instruction{Op: opMaxItems, A: uint32(tupleLen)}, location{keyword: keyword})
		j := c.program.emit(Instruction{Op: opJumpIfInvalid}, location{keyword: keyword})
		c.program.patchJumpTarget(j, j+1)
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(restChild, baseURI, sc)
	if err != nil {
		return err
	}
	c.program.emit(Instruction{Op: opItemsRest, A: uint32(subIdx), B: uint32(tupleLen), Node: id}, location{keyword: keyword})
	return nil
}

func (c *compiler) compileContains(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	var containsChild nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == "contains" {
			containsChild = childID
			break
		}
	}
	if containsChild == nilNode {
		return nil
	}
	min := 1
	max := -1
	if v, ok := obj["minContains"]; ok {
		n, _ := numLiteral(v)
		min = int(n)
	}
	if v, ok := obj["maxContains"]; ok {
		n, _ := numLiteral(v)
		max = int(n)
	}
	subIdx, err := c.compileInlineSubroutine(containsChild, baseURI, sc)
	if err != nil {
		return err
	}
	constIdx := c.program.addConstant(constant{kind: constIntPair, intPair: [2]int{min, max}})
	c.program.emit(Instruction{Op: opContains, A: uint32(subIdx), B: constIdx, Node: id}, location{keyword: "contains"})
	return nil
}

// compileInlineSubroutine compiles childID as its own subroutine (entry +
// trailing Return), the same shape compileRefTarget builds for $ref targets,
// so the VM can apply it to an unbounded number of array elements/object
// keys via repeated nested run() calls instead of unrolled bytecode.
func (c *compiler) compileInlineSubroutine(childID nodeID, baseURI string, sc *scope) (int, error) {
	subIdx := len(c.program.Subroutines)
	c.program.Subroutines = append(c.program.Subroutines, subroutine{})
	entry, err := c.compileSchema(childID, baseURI, sc)
	if err != nil {
		return 0, err
	}
	exit := len(c.program.Instructions)
	c.program.emit(Instruction{Op: opReturn}, location{})
	c.program.Subroutines[subIdx] = subroutine{entry: entry, exit: exit}
	return subIdx, nil
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func (c *compiler) compileObject(obj map[string]any, id nodeID, baseURI string, sc *scope, emit func(Instruction, location)) error {
	if v, ok := obj["minProperties"]; ok {
		n, _ := numLiteral(v)
		emit(Instruction{Op: opMinProperties, A: uint32(n)}, location{keyword: "minProperties"})
	}
	if v, ok := obj["maxProperties"]; ok {
		n, _ := numLiteral(v)
		emit(Instruction{Op: opMaxProperties, A: uint32(n)}, location{keyword: "maxProperties"})
	}
	if req, ok := obj["required"].([]any); ok {
		keys := make([]string, 0, len(req))
		for _, k := range req {
			if s, ok := k.(string); ok {
				keys = append(keys, s)
			}
		}
		idx := c.program.addConstant(constant{kind: constStringSet, strs: keys})
		emit(Instruction{Op: opRequired, A: idx}, location{keyword: "required"})
	}

	if props, ok := obj["properties"].(map[string]any); ok {
		for _, childID := range c.arena.children(id) {
			child := c.arena.get(childID)
			if len(child.edgeLabel) < len("properties/") || child.edgeLabel[:len("properties/")] != "properties/" {
				continue
			}
			name := pointerUnescape(child.edgeLabel[len("properties/"):])
			if _, declared := props[name]; !declared {
				continue
			}
			keyIdx := c.program.addConstant(constant{kind: constString, str: name})
			push := c.program.emit(Instruction{Op: opPushProp, A: keyIdx}, location{keyword: "properties", instanceSegment: name})
			if _, err := c.compileSchema(childID, baseURI, sc); err != nil {
				return err
			}
			c.program.emit(Instruction{Op: opPopValue}, location{})
			after := len(c.program.Instructions)
			c.program.Instructions[push].B = uint32(after)
		}
	}

	patternSubs, declaredNames, patternRegexes, err := c.compilePatternProperties(obj, id, baseURI, sc)
	if err != nil {
		return err
	}
	if len(patternSubs) > 0 {
		idx := c.program.addConstant(constant{kind: constPatternSubs, patternSubs: patternSubs})
		c.program.emit(Instruction{Op: opPatternProperties, A: idx, Node: id}, location{keyword: "patternProperties"})
	}

	if err := c.compileAdditionalProperties(obj, id, baseURI, sc, declaredNames, patternRegexes); err != nil {
		return err
	}

	if err := c.compileNamedChildAsSubroutine(obj, id, baseURI, sc, "propertyNames", opPropertyNames); err != nil {
		return err
	}

	if err := c.compileDependentRequired(obj, "dependentRequired"); err != nil {
		return err
	}
	if err := c.compileDependentSchemas(obj, id, baseURI, sc, "dependentSchemas"); err != nil {
		return err
	}
	// Draft4-7 "dependencies" is polymorphic per key: an array of strings
	// means dependentRequired, a schema (or bool) means dependentSchemas.
	if _, ok := obj["dependencies"].(map[string]any); ok {
		if err := c.compileDependentRequired(obj, "dependencies"); err != nil {
			return err
		}
		if err := c.compileDependentSchemas(obj, id, baseURI, sc, "dependencies"); err != nil {
			return err
		}
	}
	return nil
}

// compilePatternProperties compiles every patternProperties regex/schema
// pair and also returns the declared property names and compiled regexes,
// which additionalProperties needs to know which keys it must skip.
func (c *compiler) compilePatternProperties(obj map[string]any, id nodeID, baseURI string, sc *scope) ([]patternSub, []string, []*regexp.Regexp, error) {
	var declaredNames []string
	if props, ok := obj["properties"].(map[string]any); ok {
		for name := range props {
			declaredNames = append(declaredNames, name)
		}
	}
	patterns, ok := obj["patternProperties"].(map[string]any)
	if !ok {
		return nil, declaredNames, nil, nil
	}
	var subs []patternSub
	var regexes []*regexp.Regexp
	for _, childID := range c.arena.children(id) {
		child := c.arena.get(childID)
		const prefix = "patternProperties/"
		if len(child.edgeLabel) <= len(prefix) || child.edgeLabel[:len(prefix)] != prefix {
			continue
		}
		rawPattern := pointerUnescape(child.edgeLabel[len(prefix):])
		if _, declared := patterns[rawPattern]; !declared {
			continue
		}
		re, err := regexp.Compile(rawPattern)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: patternProperties %q: %v", ErrRegexCompilation, rawPattern, err)
		}
		subIdx, err := c.compileInlineSubroutine(childID, baseURI, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		subs = append(subs, patternSub{regex: re, sub: subIdx})
		regexes = append(regexes, re)
	}
	return subs, declaredNames, regexes, nil
}

// compileAdditionalProperties lowers "additionalProperties", whose schema
// (or false) applies only to keys not covered by "properties" or
// "patternProperties".
func (c *compiler) compileAdditionalProperties(obj map[string]any, id nodeID, baseURI string, sc *scope, declaredNames []string, patternRegexes []*regexp.Regexp) error {
	var apChild nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == "additionalProperties" {
			apChild = childID
			break
		}
	}
	if apChild == nilNode {
		return nil
	}
	exclIdx := c.program.addConstant(constant{kind: constPropExclusion, strs: declaredNames, regexes: patternRegexes})
	if b, isBool := c.arena.get(apChild).value.(bool); isBool && !b {
		c.program.emit(Instruction{Op: opAdditionalProperties, A: exclIdx, B: noSubroutine, Node: id}, location{keyword: "additionalProperties"})
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(apChild, baseURI, sc)
	if err != nil {
		return err
	}
	c.program.emit(Instruction{Op: opAdditionalProperties, A: exclIdx, B: uint32(subIdx), Node: id}, location{keyword: "additionalProperties"})
	return nil
}

// compileNamedChildAsSubroutine compiles id's single named-keyword child
// (propertyNames) as a subroutine and emits op against it.
func (c *compiler) compileNamedChildAsSubroutine(obj map[string]any, id nodeID, baseURI string, sc *scope, keyword string, op opcode) error {
	if _, ok := obj[keyword]; !ok {
		return nil
	}
	var child nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == keyword {
			child = childID
			break
		}
	}
	if child == nilNode {
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(child, baseURI, sc)
	if err != nil {
		return err
	}
	c.program.emit(Instruction{Op: op, A: uint32(subIdx), Node: id}, location{keyword: keyword})
	return nil
}

func (c *compiler) compileDependentRequired(obj map[string]any, keyword string) error {
	deps, ok := obj[keyword].(map[string]any)
	if !ok {
		return nil
	}
	var entries []depReqEntry
	for trigger, v := range deps {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		required := make([]string, 0, len(arr))
		for _, r := range arr {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
		entries = append(entries, depReqEntry{trigger: trigger, required: required})
	}
	if len(entries) == 0 {
		return nil
	}
	idx := c.program.addConstant(constant{kind: constDepReq, depReq: entries})
	c.program.emit(Instruction{Op: opDependentRequired, A: idx}, location{keyword: keyword})
	return nil
}

func (c *compiler) compileDependentSchemas(obj map[string]any, id nodeID, baseURI string, sc *scope, keyword string) error {
	deps, ok := obj[keyword].(map[string]any)
	if !ok {
		return nil
	}
	prefix := keyword + "/"
	var entries []depSchemaEntry
	for _, childID := range c.arena.children(id) {
		child := c.arena.get(childID)
		if len(child.edgeLabel) <= len(prefix) || child.edgeLabel[:len(prefix)] != prefix {
			continue
		}
		trigger := pointerUnescape(child.edgeLabel[len(prefix):])
		if v, declared := deps[trigger]; !declared {
			continue
		} else if _, isArr := v.([]any); isArr {
			continue // handled by compileDependentRequired
		}
		subIdx, err := c.compileInlineSubroutine(childID, baseURI, sc)
		if err != nil {
			return err
		}
		entries = append(entries, depSchemaEntry{trigger: trigger, sub: subIdx})
	}
	if len(entries) == 0 {
		return nil
	}
	idx := c.program.addConstant(constant{kind: constDepSchemas, depSchemas: entries})
	c.program.emit(Instruction{Op: opDependentSchemas, A: idx}, location{keyword: keyword})
	return nil
}

func (c *compiler) compileCombinators(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	if err := c.compileScopeGroup(obj, id, baseURI, sc, "allOf", opPushScopeAnd); err != nil {
		return err
	}
	if err := c.compileScopeGroup(obj, id, baseURI, sc, "anyOf", opPushScopeOr); err != nil {
		return err
	}
	if err := c.compileScopeGroup(obj, id, baseURI, sc, "oneOf", opPushScopeXor); err != nil {
		return err
	}
	if _, ok := obj["not"]; ok {
		c.program.emit(Instruction{Op: opPushScopeNot, Node: id}, location{keyword: "not"})
		if err := c.compileNamedChild(id, baseURI, sc, "not"); err != nil {
			return err
		}
		c.program.emit(Instruction{Op: opPopScope, Node: id}, location{keyword: "not"})
	}
	return nil
}

func (c *compiler) compileScopeGroup(obj map[string]any, id nodeID, baseURI string, sc *scope, keyword string, scopeOp opcode) error {
	arr, ok := obj[keyword].([]any)
	if !ok {
		return nil
	}
	c.program.emit(Instruction{Op: scopeOp, Node: id}, location{keyword: keyword})
	for i := range arr {
		if err := c.compileNamedChild(id, baseURI, sc, keyword+"/"+itoaIndex(i)); err != nil {
			return err
		}
	}
	c.program.emit(Instruction{Op: opPopScope, Node: id}, location{keyword: keyword})
	return nil
}

func (c *compiler) compileConditional(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	if _, ok := obj["if"]; !ok {
		return nil
	}
	_, hasThen := obj["then"]
	_, hasElse := obj["else"]
	gateCount := uint32(0)
	if hasThen {
		gateCount++
	}
	if hasElse {
		gateCount++
	}
	c.program.emit(Instruction{Op: opIfPrologue, A: gateCount}, location{keyword: "if"})
	if err := c.compileNamedChild(id, baseURI, sc, "if"); err != nil {
		return err
	}
	if hasThen {
		thenGate := c.program.emit(Instruction{Op: opThenGate}, location{keyword: "then"})
		if err := c.compileNamedChild(id, baseURI, sc, "then"); err != nil {
			return err
		}
		c.program.patchJumpTarget(thenGate, len(c.program.Instructions))
	}
	if hasElse {
		elseGate := c.program.emit(Instruction{Op: opElseGate}, location{keyword: "else"})
		if err := c.compileNamedChild(id, baseURI, sc, "else"); err != nil {
			return err
		}
		c.program.patchJumpTarget(elseGate, len(c.program.Instructions))
	}
	return nil
}

// compileNamedChild finds id's child reached by edgeLabel and compiles it.
func (c *compiler) compileNamedChild(id nodeID, baseURI string, sc *scope, edgeLabel string) error {
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == edgeLabel {
			_, err := c.compileSchema(childID, baseURI, sc)
			return err
		}
	}
	return nil
}

// compileContent lowers contentSchema (spec §4.3's "special" handling isn't
// needed here - contentSchema is a plain inValue subresource): decode the
// instance string per contentEncoding, then validate the decoded JSON
// against contentSchema. contentEncoding/contentMediaType alone (with no
// contentSchema) are annotations only, matching the teacher's
// EvaluateContent short-circuit when ContentSchema is nil.
func (c *compiler) compileContent(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	if _, ok := obj["contentSchema"]; !ok {
		return nil
	}
	var child nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == "contentSchema" {
			child = childID
			break
		}
	}
	if child == nilNode {
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(child, baseURI, sc)
	if err != nil {
		return err
	}
	encoding, _ := obj["contentEncoding"].(string)
	encIdx := c.program.addConstant(constant{kind: constString, str: encoding})
	c.program.emit(Instruction{Op: opContentSchema, A: uint32(subIdx), B: encIdx, Node: id}, location{keyword: "contentSchema"})
	return nil
}

// compileUnevaluatedProperties lowers "unevaluatedProperties": applied to
// every object key this region's frame hasn't already claimed via
// properties/patternProperties/additionalProperties or a successful
// in-place applicator (allOf/anyOf/oneOf branch, if/then/else, $ref).
func (c *compiler) compileUnevaluatedProperties(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	if _, ok := obj["unevaluatedProperties"]; !ok {
		return nil
	}
	var child nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == "unevaluatedProperties" {
			child = childID
			break
		}
	}
	if child == nilNode {
		return nil
	}
	if b, isBool := c.arena.get(child).value.(bool); isBool && !b {
		c.program.emit(Instruction{Op: opUnevaluatedProperties, A: noSubroutine, Node: id}, location{keyword: "unevaluatedProperties"})
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(child, baseURI, sc)
	if err != nil {
		return err
	}
	c.program.emit(Instruction{Op: opUnevaluatedProperties, A: uint32(subIdx), Node: id}, location{keyword: "unevaluatedProperties"})
	return nil
}

// compileUnevaluatedItems is unevaluatedProperties' array-side twin, applied
// to every element this region's frame hasn't already claimed via
// prefixItems/items/contains or a successful in-place applicator.
func (c *compiler) compileUnevaluatedItems(obj map[string]any, id nodeID, baseURI string, sc *scope) error {
	if _, ok := obj["unevaluatedItems"]; !ok {
		return nil
	}
	var child nodeID
	for _, childID := range c.arena.children(id) {
		if c.arena.get(childID).edgeLabel == "unevaluatedItems" {
			child = childID
			break
		}
	}
	if child == nilNode {
		return nil
	}
	if b, isBool := c.arena.get(child).value.(bool); isBool && !b {
		c.program.emit(Instruction{Op: opUnevaluatedItems, A: noSubroutine, Node: id}, location{keyword: "unevaluatedItems"})
		return nil
	}
	subIdx, err := c.compileInlineSubroutine(child, baseURI, sc)
	if err != nil {
		return err
	}
	c.program.emit(Instruction{Op: opUnevaluatedItems, A: uint32(subIdx), Node: id}, location{keyword: "unevaluatedItems"})
	return nil
}

// compileRef emits Call/DynamicCall for $ref/$dynamicRef, compiling the
// target exactly once per (uri, pointer) and reusing the subroutine on
// repeat visits so cycles terminate at runtime instead of at compile time.
func (c *compiler) compileRef(obj map[string]any, id nodeID, baseURI string, sc *scope, pendingJumps *[]int) error {
	dialect := c.program.Dialect
	if ref, _ := obj[dialect.refKeyword()].(string); ref != "" {
		subIdx, err := c.compileRefTarget(resolveRelativeURI(baseURI, ref), sc)
		if err != nil {
			return err
		}
		c.program.emit(Instruction{Op: opCall, A: uint32(subIdx), Node: id}, location{keyword: "$ref"})
		j := c.program.emit(Instruction{Op: opJumpIfInvalid}, location{keyword: "$ref"})
		*pendingJumps = append(*pendingJumps, j)
	}
	if dk := dialect.dynamicRefKeyword(); dk != "" {
		if ref, _ := obj[dk].(string); ref != "" {
			_, fragment := splitRef(ref)
			nameIdx := c.program.addConstant(constant{kind: constString, str: fragment})
			subIdx, err := c.compileRefTarget(resolveRelativeURI(baseURI, ref), sc)
			if err != nil {
				return err
			}
			c.program.emit(Instruction{Op: opDynamicCall, A: nameIdx, B: uint32(subIdx), Node: id}, location{keyword: dk})
			j := c.program.emit(Instruction{Op: opJumpIfInvalid}, location{keyword: dk})
			*pendingJumps = append(*pendingJumps, j)
		}
	}
	return nil
}

// compileRefTarget resolves ref (already an absolute or scope-relative URI
// possibly with a fragment) to a schema node and returns its subroutine
// index, compiling it on first visit and reusing the cached index — or, if
// the target is still being compiled higher up the call stack, the
// in-progress index — on repeat visits (spec §4.6).
func (c *compiler) compileRefTarget(ref string, sc *scope) (int, error) {
	base, fragment := splitRef(ref)
	resolved, err := c.resolver.resolveRef(ref, sc)
	if err != nil {
		return 0, err
	}
	key := sourceKey(base, fragment)
	if idx, ok := c.subroutinesByKey[key]; ok {
		return idx, nil
	}
	if idx, ok := c.inProgress[key]; ok {
		return idx, nil
	}

	subIdx := len(c.program.Subroutines)
	c.program.Subroutines = append(c.program.Subroutines, subroutine{})
	c.inProgress[key] = subIdx

	childID, err := buildIR(c.arena, c.registry, resolved.resource, resolved.value, nilNode, resolved.pointer)
	if err != nil {
		return 0, err
	}
	entry, err := c.compileSchema(childID, resolved.resource.URI, sc.push(resolved.resource.URI))
	if err != nil {
		return 0, err
	}
	exit := len(c.program.Instructions)
	c.program.emit(Instruction{Op: opReturn}, location{})
	c.program.Subroutines[subIdx] = subroutine{entry: entry, exit: exit, resourceURI: resolved.resource.URI}

	delete(c.inProgress, key)
	c.subroutinesByKey[key] = subIdx
	return subIdx, nil
}

// compileDynamicTarget compiles (or reuses) the subroutine for a resource's
// own declaration of a $dynamicAnchor, keyed the same way compileRefTarget
// keys a plain $ref target: (resourceURI, pointer). Called once per entry in
// the registry's dynamic-anchor table after the rest of the schema has been
// compiled, so every resource a $dynamicRef could possibly resolve to at
// runtime (spec §4.4) already has a ready subroutine in dynamicTargets.
func (c *compiler) compileDynamicTarget(resourceURI, pointer string) (int, error) {
	key := sourceKey(resourceURI, pointer)
	if idx, ok := c.subroutinesByKey[key]; ok {
		return idx, nil
	}
	if idx, ok := c.inProgress[key]; ok {
		return idx, nil
	}

	res, err := c.registry.resourceFor(resourceURI)
	if err != nil {
		return 0, err
	}
	val, err := evalPointer(res.Document, pointer)
	if err != nil {
		return 0, err
	}

	subIdx := len(c.program.Subroutines)
	c.program.Subroutines = append(c.program.Subroutines, subroutine{})
	c.inProgress[key] = subIdx

	childID, err := buildIR(c.arena, c.registry, res, val, nilNode, pointer)
	if err != nil {
		return 0, err
	}
	entry, err := c.compileSchema(childID, res.URI, (*scope)(nil).push(res.URI))
	if err != nil {
		return 0, err
	}
	exit := len(c.program.Instructions)
	c.program.emit(Instruction{Op: opReturn}, location{})
	c.program.Subroutines[subIdx] = subroutine{entry: entry, exit: exit, resourceURI: res.URI}

	delete(c.inProgress, key)
	c.subroutinesByKey[key] = subIdx
	return subIdx, nil
}
