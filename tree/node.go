package tree

import (
	"github.com/attic-labs/treekernel/d"
	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
)

// node is one overlaid tree position: a copy-on-write delta over an
// immutable base snapshot. Reading through it yields (base minus
// removed names) plus overlay entries. Nodes are exclusively owned by
// one Root and materialize lazily: traversal wires up an overlay node
// per visited position, referencing the base snapshot until a mutation
// actually changes something.
//
// Iteration order is insertion order: base entries keep their base
// positions (an overridden property stays put), overlay-added entries
// follow in the order they were added. Re-iterating without mutation
// yields the same order.
type node struct {
	parent *node // nil for the workspace root
	name   string
	base   *state.NodeState // nil for nodes added in this session

	children map[string]*node    // materialized children by name
	added    []string            // names whose current child is overlay-new
	removed  map[string]struct{} // base child names hidden by removal

	props       map[string]state.Value
	propAdded   []string // property names not present in base
	propRemoved map[string]struct{}
}

func newNode(parent *node, name string, base *state.NodeState) *node {
	return &node{
		parent:      parent,
		name:        name,
		base:        base,
		children:    map[string]*node{},
		removed:     map[string]struct{}{},
		props:       map[string]state.Value{},
		propRemoved: map[string]struct{}{},
	}
}

func (n *node) baseChild(name string) (*state.NodeState, bool) {
	if n.base == nil {
		return nil, false
	}
	return n.base.Child(name)
}

func (n *node) hasChild(name string) bool {
	if _, ok := n.children[name]; ok {
		return true
	}
	if _, ok := n.removed[name]; ok {
		return false
	}
	_, ok := n.baseChild(name)
	return ok
}

// child resolves a visible child, materializing an overlay node for a
// base child on first access.
func (n *node) child(name string) (*node, bool) {
	if c, ok := n.children[name]; ok {
		return c, true
	}
	if _, ok := n.removed[name]; ok {
		return nil, false
	}
	base, ok := n.baseChild(name)
	if !ok {
		return nil, false
	}
	c := newNode(n, name, base)
	n.children[name] = c
	return c, true
}

// childNames returns the visible child names in iteration order.
func (n *node) childNames() []string {
	var names []string
	if n.base != nil {
		for _, name := range n.base.ChildNames() {
			if _, rm := n.removed[name]; rm {
				continue
			}
			names = append(names, name)
		}
	}
	return append(names, n.added...)
}

func (n *node) hasProperty(name string) bool {
	if _, ok := n.props[name]; ok {
		return true
	}
	if _, ok := n.propRemoved[name]; ok {
		return false
	}
	if n.base == nil {
		return false
	}
	_, ok := n.base.Property(name)
	return ok
}

func (n *node) property(name string) (state.Value, bool) {
	if v, ok := n.props[name]; ok {
		return v, true
	}
	if _, ok := n.propRemoved[name]; ok {
		return nil, false
	}
	if n.base == nil {
		return nil, false
	}
	return n.base.Property(name)
}

// propertyNames returns the visible property names in iteration order.
func (n *node) propertyNames() []string {
	var names []string
	if n.base != nil {
		for _, name := range n.base.PropertyNames() {
			if _, rm := n.propRemoved[name]; rm {
				continue
			}
			names = append(names, name)
		}
	}
	return append(names, n.propAdded...)
}

// addChild creates an empty overlay child. The caller has already
// checked for collisions.
func (n *node) addChild(name string) *node {
	d.Chk.False(n.hasChild(name))
	c := newNode(n, name, nil)
	n.attach(name, c)
	return c
}

// attach wires c in as the overlay child called name. If a base child
// of that name exists it must already be hidden by a removal marker.
func (n *node) attach(name string, c *node) {
	_, baseHas := n.baseChild(name)
	if baseHas {
		_, rm := n.removed[name]
		d.Chk.True(rm, "attach would shadow live base child %q", name)
	}
	c.parent = n
	c.name = name
	n.children[name] = c
	n.added = append(n.added, name)
}

// detachChild unlinks the visible child called name and returns it.
// The child keeps its overlay state, ready for re-attachment (move).
func (n *node) detachChild(name string) *node {
	c, ok := n.child(name)
	d.Chk.True(ok)
	delete(n.children, name)
	n.added = remove(n.added, name)
	if _, baseHas := n.baseChild(name); baseHas {
		n.removed[name] = struct{}{}
	}
	c.parent = nil
	return c
}

func (n *node) setProperty(name string, v state.Value) {
	if _, ok := n.props[name]; !ok {
		baseHas := false
		if n.base != nil {
			_, baseHas = n.base.Property(name)
		}
		if _, rm := n.propRemoved[name]; rm {
			// Reviving a removed base property restores its base
			// position.
			delete(n.propRemoved, name)
		} else if !baseHas {
			n.propAdded = append(n.propAdded, name)
		}
	}
	n.props[name] = v
}

func (n *node) removeProperty(name string) {
	d.Chk.True(n.hasProperty(name))
	delete(n.props, name)
	n.propAdded = remove(n.propAdded, name)
	if n.base != nil {
		if _, ok := n.base.Property(name); ok {
			n.propRemoved[name] = struct{}{}
		}
	}
}

// isAncestorOf reports whether n is a strict ancestor of other in the
// current overlay. This is the structural cycle check for move: it
// consults live parent links, so it stays exact even after earlier
// uncommitted moves have relocated either node.
func (n *node) isAncestorOf(other *node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// deepCopy duplicates the node's value: overlay state is cloned all
// the way down, while untouched base snapshots are shared (they are
// immutable, so sharing is invisible to either side).
func (n *node) deepCopy(parent *node, name string) *node {
	c := newNode(parent, name, n.base)
	for k := range n.removed {
		c.removed[k] = struct{}{}
	}
	for k, v := range n.props {
		c.props[k] = v
	}
	for k := range n.propRemoved {
		c.propRemoved[k] = struct{}{}
	}
	c.propAdded = append([]string(nil), n.propAdded...)
	c.added = append([]string(nil), n.added...)
	for k, child := range n.children {
		c.children[k] = child.deepCopy(c, k)
	}
	return c
}

// materialize produces the immutable snapshot equivalent to reading
// every name through the overlay. Subtrees without materialized
// overlay children reuse their base snapshots outright.
func (n *node) materialize() *state.NodeState {
	childNames := n.childNames()
	children := make(map[string]*state.NodeState, len(childNames))
	for _, name := range childNames {
		if c, ok := n.children[name]; ok {
			children[name] = c.materialize()
			continue
		}
		base, ok := n.baseChild(name)
		d.Chk.True(ok)
		children[name] = base
	}

	propNames := n.propertyNames()
	props := make(map[string]state.Value, len(propNames))
	for _, name := range propNames {
		v, ok := n.property(name)
		d.Chk.True(ok)
		props[name] = v
	}

	return state.Make(childNames, children, propNames, props)
}

// resolve descends from n along segs, materializing overlay nodes for
// the visited spine.
func (n *node) resolve(segs []string) (*node, bool) {
	cur := n
	for _, seg := range segs {
		c, ok := cur.child(seg)
		if !ok {
			return nil, false
		}
		cur = c
	}
	return cur, true
}

func remove(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i:i], names[i+1:]...)
		}
	}
	return names
}

// validateName rejects names that cannot appear in a path.
func validateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidArgument, "empty name")
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return errors.Wrapf(ErrInvalidArgument, "name %q contains '/'", name)
		}
	}
	return nil
}
