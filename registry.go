package jsonschema

import "fmt"

// anchorKey identifies an anchor (plain or dynamic) within a base URI.
type anchorKey struct {
	baseURI string
	name    string
}

// Registry indexes every resource a Build needs to resolve $ref/$dynamicRef
// against: the root document, anything pulled in via Retriever, and the
// bundled meta-schemas. TryWithResource returns an extended copy rather than
// mutating in place, mirroring the teacher's Compiler.schemas cache but
// without a mutex. resourceFor is the exception: a document it fetches
// through the Retriever is added to the receiver's own maps.
type Registry struct {
	resources map[string]*Resource       // by base URI
	anchors   map[anchorKey]string       // -> json pointer within that resource
	dynamic   map[anchorKey]string       // dynamic anchors, same shape
	retriever Retriever
}

func newRegistry(retriever Retriever) *Registry {
	if retriever == nil {
		retriever = NopRetriever{}
	}
	reg := &Registry{
		resources: make(map[string]*Resource),
		anchors:   make(map[anchorKey]string),
		dynamic:   make(map[anchorKey]string),
		retriever: retriever,
	}
	for _, ms := range bundledMetaschemas {
		res := &Resource{URI: ms.uri, Document: ms.doc, Dialect: ms.dialect}
		if err := reg.index(ms.uri, res); err != nil {
			panic("jsonschema: failed indexing bundled meta-schema " + ms.uri + ": " + err.Error())
		}
	}
	return reg
}

// TryWithResource returns a new Registry with resource added and indexed,
// leaving the receiver untouched.
func (reg *Registry) TryWithResource(uri string, res *Resource) (*Registry, error) {
	next := &Registry{
		resources: cloneResourceMap(reg.resources),
		anchors:   cloneAnchorMap(reg.anchors),
		dynamic:   cloneAnchorMap(reg.dynamic),
		retriever: reg.retriever,
	}
	if err := next.index(uri, res); err != nil {
		return nil, err
	}
	return next, nil
}

func cloneResourceMap(m map[string]*Resource) map[string]*Resource {
	out := make(map[string]*Resource, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnchorMap(m map[anchorKey]string) map[anchorKey]string {
	out := make(map[anchorKey]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// index walks res's subresources gathering $id declarations, anchors,
// dynamic anchors, and registering each nested resource boundary, per
// spec §4.4.
func (reg *Registry) index(uri string, res *Resource) error {
	reg.resources[uri] = res
	return reg.walk(res, uri, res.Document, "")
}

func (reg *Registry) walk(res *Resource, baseURI string, doc any, pointer string) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	if id, _ := obj[res.Dialect.idKeyword()].(string); id != "" && pointer != "" {
		nestedBase := resolveRelativeURI(baseURI, id)
		nested := &Resource{URI: nestedBase, Document: doc, Dialect: res.Dialect}
		reg.resources[nestedBase] = nested
		baseURI = nestedBase
		pointer = ""
	}

	if anchor, _ := obj["$anchor"].(string); anchor != "" {
		reg.anchors[anchorKey{baseURI, anchor}] = pointer
	}
	if anchor, _ := obj[res.Dialect.dynamicAnchorKeyword()].(string); anchor != "" {
		reg.dynamic[anchorKey{baseURI, anchor}] = pointer
		// A $dynamicAnchor is also dereferenceable as a plain anchor (spec
		// §4.4): compileRefTarget's static default target for a $dynamicRef
		// resolves through resolveRef/reg.anchors exactly like a $ref would,
		// with only the runtime override walking reg.dynamic.
		reg.anchors[anchorKey{baseURI, anchor}] = pointer
	}
	// 2019-09's $recursiveAnchor is a boolean; $recursiveRef ("#") looks it up
	// under the empty anchor name.
	if res.Dialect == Draft2019_09 {
		if b, _ := obj["$recursiveAnchor"].(bool); b {
			reg.dynamic[anchorKey{baseURI, ""}] = pointer
		}
	}
	if res.Dialect == Draft4 || res.Dialect == Draft6 || res.Dialect == Draft7 {
		if anchor, _ := obj["$id"].(string); anchor != "" && len(anchor) > 0 && anchor[0] == '#' {
			reg.anchors[anchorKey{baseURI, anchor[1:]}] = pointer
		}
	}

	for _, sub := range res.Subresources(doc, baseURI) {
		childPointer := pointer + "/" + sub.pointer
		if err := reg.walk(res, baseURI, sub.value, childPointer); err != nil {
			return err
		}
	}
	return nil
}

// resourceFor returns the resource registered at uri, retrieving it lazily
// via the configured Retriever when not already indexed.
func (reg *Registry) resourceFor(uri string) (*Resource, error) {
	if res, ok := reg.resources[uri]; ok {
		return res, nil
	}
	doc, err := reg.retriever.Retrieve(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRetrieverFailure, uri, err)
	}
	res := &Resource{URI: uri, Document: doc, Dialect: DialectUnknown}
	if m, ok := doc.(map[string]any); ok {
		if s, _ := m["$schema"].(string); s != "" {
			res.Dialect = dialectByURI(s)
		}
	}
	reg.resources[uri] = res
	if err := reg.walk(res, uri, doc, ""); err != nil {
		return nil, err
	}
	return res, nil
}
