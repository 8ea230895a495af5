package jsonschema

import "fmt"

// scope is one entry of the resolver's persistent base-URI stack. Each
// frame is immutable; pushing returns a new *scope sharing the old tail so
// cloning a resolution context (e.g. to fork into a $ref subroutine) is O(1).
type scope struct {
	baseURI string
	parent  *scope
}

func (s *scope) push(baseURI string) *scope {
	if s != nil && s.baseURI == baseURI {
		return s
	}
	return &scope{baseURI: baseURI, parent: s}
}

func (s *scope) current() string {
	if s == nil {
		return ""
	}
	return s.baseURI
}

// resolver resolves $ref/$dynamicRef/$recursiveRef against a Registry,
// tracking the scope stack of base URIs entered so far (spec §4.4).
type resolver struct {
	registry *Registry
}

func newResolver(reg *Registry) *resolver {
	return &resolver{registry: reg}
}

// resolved is the outcome of following a reference: the target resource,
// the JSON pointer within it, and the value found there.
type resolved struct {
	resource *Resource
	pointer  string
	value    any
}

// resolveRef follows a plain $ref value from the given scope.
func (r *resolver) resolveRef(ref string, sc *scope) (*resolved, error) {
	base, fragment := splitRef(ref)
	target := sc.current()
	if base != "" {
		target = resolveRelativeURI(sc.current(), base)
	}

	res, err := r.registry.resourceFor(target)
	if err != nil {
		return nil, err
	}

	if isJSONPointerFragment(fragment) {
		val, err := evalPointer(res.Document, fragment)
		if err != nil {
			return nil, err
		}
		return &resolved{resource: res, pointer: fragment, value: val}, nil
	}

	pointer, ok := r.registry.anchors[anchorKey{target, fragment}]
	if !ok {
		return nil, fmt.Errorf("%w: anchor %q not found in %s", ErrUnresolvableAnchor, fragment, target)
	}
	val, err := evalPointer(res.Document, pointer)
	if err != nil {
		return nil, err
	}
	return &resolved{resource: res, pointer: pointer, value: val}, nil
}

// resolveDynamicRef implements the $dynamicRef/$recursiveRef algorithm: look
// up the local dynamic anchor, then walk the scope stack outward to find
// the outermost resource that also declares the same dynamic anchor name,
// per spec §4.4. Falls back to a plain $ref lookup when name carries no
// matching dynamic anchor anywhere in scope.
func (r *resolver) resolveDynamicRef(name string, sc *scope) (*resolved, error) {
	var outermost string
	for s := sc; s != nil; s = s.parent {
		if _, ok := r.registry.dynamic[anchorKey{s.baseURI, name}]; ok {
			outermost = s.baseURI
		}
	}
	if outermost == "" {
		return r.resolveRef("#"+name, sc)
	}
	pointer := r.registry.dynamic[anchorKey{outermost, name}]
	res, err := r.registry.resourceFor(outermost)
	if err != nil {
		return nil, err
	}
	val, err := evalPointer(res.Document, pointer)
	if err != nil {
		return nil, err
	}
	return &resolved{resource: res, pointer: pointer, value: val}, nil
}
