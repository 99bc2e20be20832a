// Package state implements immutable node snapshots. A NodeState holds
// one node's children and properties at a revision; functional updates
// return new snapshots that share every unchanged subtree with the
// original, so whole-tree updates cost one new node per spine level.
//
// Children and properties keep insertion order for iteration, but
// structural equality and refs are order-independent: two states with
// the same names, values and shape are equal however they were built.
package state

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/attic-labs/treekernel/d"
	"github.com/attic-labs/treekernel/paths"
	"github.com/attic-labs/treekernel/ref"
	"github.com/pkg/errors"
)

type NodeState struct {
	childNames []string // insertion order
	children   map[string]*NodeState
	propNames  []string // insertion order
	props      map[string]Value
	ref        ref.Ref
}

var emptyState = Make(nil, nil, nil, nil)

// Empty returns the canonical empty node.
func Empty() *NodeState {
	return emptyState
}

// Make builds a NodeState from ordered name slices and their backing
// maps. The inputs are copied; callers may reuse them afterwards.
// Names must be unique and must match their map's key set.
func Make(childNames []string, children map[string]*NodeState, propNames []string, props map[string]Value) *NodeState {
	d.Chk.Equal(len(childNames), len(children))
	d.Chk.Equal(len(propNames), len(props))

	ns := &NodeState{
		childNames: append([]string(nil), childNames...),
		children:   make(map[string]*NodeState, len(children)),
		propNames:  append([]string(nil), propNames...),
		props:      make(map[string]Value, len(props)),
	}
	for _, name := range childNames {
		child, ok := children[name]
		d.Chk.True(ok, "child name %q has no entry", name)
		d.Chk.NotNil(child)
		ns.children[name] = child
	}
	for _, name := range propNames {
		v, ok := props[name]
		d.Chk.True(ok, "property name %q has no entry", name)
		d.Chk.NotNil(v)
		ns.props[name] = v
	}
	d.Chk.Equal(len(ns.children), len(childNames), "duplicate child name")
	d.Chk.Equal(len(ns.props), len(propNames), "duplicate property name")

	ns.ref = ns.computeRef()
	return ns
}

// computeRef hashes properties and children under sorted names, so the
// ref is independent of insertion order. Child subtrees contribute
// their refs, making equal refs imply structural equality.
func (ns *NodeState) computeRef() ref.Ref {
	h := ref.NewHash()
	writeString := func(s string) {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:n])
		io.WriteString(h, s)
	}

	names := append([]string(nil), ns.propNames...)
	sort.Strings(names)
	for _, name := range names {
		writeString("p")
		writeString(name)
		writeString(encodeValue(ns.props[name]))
	}

	names = append(names[:0], ns.childNames...)
	sort.Strings(names)
	for _, name := range names {
		writeString("c")
		writeString(name)
		digest := ns.children[name].Ref().Digest()
		h.Write(digest[:])
	}
	return ref.FromHash(h)
}

// Ref returns the content address of this snapshot.
func (ns *NodeState) Ref() ref.Ref {
	return ns.ref
}

// Equals reports structural equality: same child-name set with
// structurally equal children, same property mapping.
func (ns *NodeState) Equals(other *NodeState) bool {
	if ns == nil || other == nil {
		return ns == other
	}
	return ns.ref == other.ref
}

func (ns *NodeState) NumChildren() int {
	return len(ns.childNames)
}

func (ns *NodeState) NumProperties() int {
	return len(ns.propNames)
}

// ChildNames returns the child names in insertion order. The returned
// slice is a copy.
func (ns *NodeState) ChildNames() []string {
	return append([]string(nil), ns.childNames...)
}

// PropertyNames returns the property names in insertion order. The
// returned slice is a copy.
func (ns *NodeState) PropertyNames() []string {
	return append([]string(nil), ns.propNames...)
}

func (ns *NodeState) Child(name string) (*NodeState, bool) {
	child, ok := ns.children[name]
	return child, ok
}

func (ns *NodeState) Property(name string) (Value, bool) {
	v, ok := ns.props[name]
	return v, ok
}

// WithChild returns a state with name bound to child. An existing
// child keeps its position; a new name is appended.
func (ns *NodeState) WithChild(name string, child *NodeState) *NodeState {
	d.Chk.NotNil(child)
	children := copyChildren(ns.children)
	children[name] = child
	names := ns.childNames
	if _, exists := ns.children[name]; !exists {
		names = append(ns.ChildNames(), name)
	}
	return Make(names, children, ns.propNames, ns.props)
}

// WithoutChild returns a state without the named child. Removing an
// absent name returns the receiver unchanged.
func (ns *NodeState) WithoutChild(name string) *NodeState {
	if _, ok := ns.children[name]; !ok {
		return ns
	}
	children := copyChildren(ns.children)
	delete(children, name)
	return Make(without(ns.childNames, name), children, ns.propNames, ns.props)
}

// WithProperty returns a state with name set to v. An existing
// property keeps its position; a new name is appended.
func (ns *NodeState) WithProperty(name string, v Value) *NodeState {
	d.Chk.NotNil(v)
	props := copyProps(ns.props)
	props[name] = v
	names := ns.propNames
	if _, exists := ns.props[name]; !exists {
		names = append(ns.PropertyNames(), name)
	}
	return Make(ns.childNames, ns.children, names, props)
}

// WithoutProperty returns a state without the named property. Removing
// an absent name returns the receiver unchanged.
func (ns *NodeState) WithoutProperty(name string) *NodeState {
	if _, ok := ns.props[name]; !ok {
		return ns
	}
	props := copyProps(ns.props)
	delete(props, name)
	return Make(ns.childNames, ns.children, without(ns.propNames, name), props)
}

// At resolves an absolute path against this subtree. "/" resolves to
// the receiver.
func (ns *NodeState) At(path string) (*NodeState, bool) {
	cur := ns
	for _, seg := range paths.Split(path) {
		child, ok := cur.children[seg]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// UpdateAt replaces the node at path within root by f's result,
// rebuilding the spine above it. f must return a non-nil state.
func UpdateAt(root *NodeState, path string, f func(*NodeState) (*NodeState, error)) (*NodeState, error) {
	return updateAt(root, paths.Split(path), f)
}

func updateAt(ns *NodeState, segs []string, f func(*NodeState) (*NodeState, error)) (*NodeState, error) {
	if len(segs) == 0 {
		return f(ns)
	}
	child, ok := ns.children[segs[0]]
	if !ok {
		return nil, errors.Errorf("no node named %q", segs[0])
	}
	child, err := updateAt(child, segs[1:], f)
	if err != nil {
		return nil, err
	}
	return ns.WithChild(segs[0], child), nil
}

// Walk visits ns and its descendants depth-first. Returning descend ==
// false prunes the subtree below the visited node.
func Walk(ns *NodeState, visit func(*NodeState) (descend bool, err error)) error {
	descend, err := visit(ns)
	if err != nil || !descend {
		return err
	}
	for _, name := range ns.childNames {
		if err := Walk(ns.children[name], visit); err != nil {
			return err
		}
	}
	return nil
}

func copyChildren(m map[string]*NodeState) map[string]*NodeState {
	c := make(map[string]*NodeState, len(m)+1)
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyProps(m map[string]Value) map[string]Value {
	c := make(map[string]Value, len(m)+1)
	for k, v := range m {
		c[k] = v
	}
	return c
}

func without(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
