package jsonschema

import "strings"

// nodeID is a stable small-integer handle into an arena's node table.
// id 0 is never issued; id 1 is always the root of the first tree built
// into a given arena. A node's path in the source document is reconstructed
// by walking parent links and edgeLabel, matching spec §4.5.
type nodeID uint32

const nilNode nodeID = 0

// node is one arena slot: a decoded schema value (bool or map[string]any)
// plus the tree links the compiler walks to emit bytecode and to build the
// schema-relative JSON pointer Program.emit records for each instruction.
type node struct {
	id         nodeID
	value      any    // bool, or map[string]any for an object schema
	resource   *Resource
	edgeLabel  string // key/index this node was reached by from its parent
	parent     nodeID
	firstChild nodeID
	lastChild  nodeID
	nextSib    nodeID
	refTarget  string // this node's raw $ref value, "" if none
	dynamicRef string // this node's raw $dynamicRef/$recursiveRef value, "" if none
}

// arena holds every node built while compiling one top-level schema,
// including nodes pulled in from $ref targets in other resources. It is
// mutated only while building; becomes read-only once the Program that
// references it is returned from Build, per spec §4.8.
type arena struct {
	nodes []node
	// bySource is allocated but never read or written; a $ref target visited
	// twice is not deduplicated here but by the compiler's subroutinesByKey.
	bySource map[string]nodeID
}

func newArena() *arena {
	return &arena{
		nodes:    make([]node, 1, 64), // index 0 unused, keeps nodeID 0 == "nil"
		bySource: make(map[string]nodeID),
	}
}

func (a *arena) alloc(parent nodeID, edgeLabel string, value any, res *Resource) nodeID {
	id := nodeID(len(a.nodes))
	a.nodes = append(a.nodes, node{
		id:        id,
		value:     value,
		resource:  res,
		edgeLabel: edgeLabel,
		parent:    parent,
	})
	if parent != nilNode {
		a.linkChild(parent, id)
	}
	return id
}

func (a *arena) linkChild(parent, child nodeID) {
	p := &a.nodes[parent]
	if p.firstChild == nilNode {
		p.firstChild = child
		p.lastChild = child
		return
	}
	a.nodes[p.lastChild].nextSib = child
	p.lastChild = child
}

func (a *arena) get(id nodeID) *node { return &a.nodes[id] }

// sourceKey is the dedup/cache key for a (resource, pointer) pair used to
// detect $ref cycles and avoid recompiling a shared target twice.
func sourceKey(uri, pointer string) string { return uri + "#" + pointer }

// children returns id's direct children in the order buildIR linked them by
// walking the singly linked nextSib chain, per spec §4.5 ("cache-friendly
// iteration"). That order is Resource.Subresources' order, which ranges over
// Go maps, so sibling order can differ from one Build to the next.
func (a *arena) children(id nodeID) []nodeID {
	var out []nodeID
	for c := a.nodes[id].firstChild; c != nilNode; c = a.nodes[c].nextSib {
		out = append(out, c)
	}
	return out
}

// pathFromRoot reconstructs the schema-relative JSON pointer to id by
// walking parent links and collecting edgeLabel at each step; called by
// Program.emit at compile time, never while validating. A single
// edgeLabel may itself span more than one pointer segment (e.g.
// "properties/name", built by Resource.Subresources as keyword+"/"+name), so
// each is split and unescaped into its own raw reference tokens before the
// caller re-escapes and joins them via formatPointer.
func (a *arena) pathFromRoot(id nodeID) []string {
	var perNode [][]string
	for cur := id; cur != nilNode; cur = a.nodes[cur].parent {
		if label := a.nodes[cur].edgeLabel; label != "" {
			perNode = append(perNode, splitEdgeLabel(label))
		}
		if a.nodes[cur].parent == nilNode {
			break
		}
	}
	var labels []string
	for i := len(perNode) - 1; i >= 0; i-- {
		labels = append(labels, perNode[i]...)
	}
	return labels
}

// splitEdgeLabel splits a (possibly multi-segment, RFC 6901-escaped)
// edgeLabel into its raw, unescaped reference tokens. A subroutine's root
// node carries its full resolved pointer (e.g. "/$defs/pos") as edgeLabel
// despite having no parent in this arena, so a leading "/" yields a leading
// empty split segment that must be dropped rather than treated as a token.
func splitEdgeLabel(label string) []string {
	if label == "" {
		return nil
	}
	parts := strings.Split(label, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, pointerUnescape(p))
	}
	return out
}

// buildIR performs the single top-down pass over res's document described
// in spec §4.5, allocating one arena node per schema value reached (root,
// then every subresource). $ref/$dynamicRef targets are recorded on the
// node but not expanded inline — the compiler resolves and compiles them
// lazily into subroutines so cyclic schemas terminate.
func buildIR(a *arena, reg *Registry, res *Resource, doc any, parent nodeID, edgeLabel string) (nodeID, error) {
	id := a.alloc(parent, edgeLabel, doc, res)

	obj, ok := doc.(map[string]any)
	if !ok {
		return id, nil // boolean schema: leaf node, nothing further to walk
	}

	if ref, _ := obj[res.Dialect.refKeyword()].(string); ref != "" {
		a.nodes[id].refTarget = ref
	}
	if dk := res.Dialect.dynamicRefKeyword(); dk != "" {
		if ref, _ := obj[dk].(string); ref != "" {
			a.nodes[id].dynamicRef = ref
		}
	}

	for _, sub := range res.Subresources(doc, res.URI) {
		if _, err := buildIR(a, reg, res, sub.value, id, sub.pointer); err != nil {
			return nilNode, err
		}
	}
	return id, nil
}
