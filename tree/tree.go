package tree

import (
	"github.com/attic-labs/treekernel/kernel"
	"github.com/attic-labs/treekernel/paths"
	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
)

// Tree is a path-addressed handle on one position of a session's
// working tree. Handles are cheap and several may address the same
// node. Every operation re-resolves the handle's path against the
// current overlay; once the node no longer resolves (it was removed,
// or moved away), operations fail with ErrStaleHandle.
type Tree struct {
	root *Root
	path string // workspace-relative, "/" is the workspace root
}

func (t *Tree) Path() string {
	return t.path
}

func (t *Tree) Name() string {
	return paths.Name(t.path)
}

func (t *Tree) resolve() (*node, error) {
	n, ok := t.root.node.resolve(paths.Split(t.path))
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "no node at %q", t.path)
	}
	return n, nil
}

// AddChild creates an empty child node and returns a handle on it.
// Fails with ErrAlreadyExists if a child of that name is visible,
// whether from the base state or the overlay.
func (t *Tree) AddChild(name string) (*Tree, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	if n.hasChild(name) {
		return nil, errors.Wrapf(ErrAlreadyExists, "node %q", paths.Concat(t.path, name))
	}
	n.addChild(name)
	t.root.journal = append(t.root.journal, kernel.AddNode(paths.Concat(t.path, name)))
	return &Tree{root: t.root, path: paths.Concat(t.path, name)}, nil
}

// RemoveChild removes the named child and its subtree from the
// overlay. Handles addressing the removed subtree become stale.
func (t *Tree) RemoveChild(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	n, err := t.resolve()
	if err != nil {
		return err
	}
	if !n.hasChild(name) {
		return errors.Wrapf(ErrNotFound, "node %q", paths.Concat(t.path, name))
	}
	n.detachChild(name)
	t.root.journal = append(t.root.journal, kernel.RemoveNode(paths.Concat(t.path, name)))
	return nil
}

// Remove removes the node this handle addresses. Removing the
// workspace root is forbidden and fails at mutation time.
func (t *Tree) Remove() error {
	if t.path == paths.Root {
		return errors.Wrap(ErrInvalidArgument, "cannot remove the workspace root")
	}
	parent := &Tree{root: t.root, path: paths.Parent(t.path)}
	return parent.RemoveChild(t.Name())
}

// SetProperty creates or overwrites a property.
func (t *Tree) SetProperty(name string, v state.Value) error {
	if err := validateName(name); err != nil {
		return err
	}
	if v == nil {
		return errors.Wrap(ErrInvalidArgument, "nil property value")
	}
	n, err := t.resolve()
	if err != nil {
		return err
	}
	n.setProperty(name, v)
	t.root.journal = append(t.root.journal, kernel.SetProperty(t.path, name, v))
	return nil
}

// RemoveProperty removes a property, failing with ErrNotFound if it is
// absent.
func (t *Tree) RemoveProperty(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	n, err := t.resolve()
	if err != nil {
		return err
	}
	if !n.hasProperty(name) {
		return errors.Wrapf(ErrNotFound, "property %q at %q", name, t.path)
	}
	n.removeProperty(name)
	t.root.journal = append(t.root.journal, kernel.RemoveProperty(t.path, name))
	return nil
}

// Property returns the named property's value, or ErrNotFound.
func (t *Tree) Property(name string) (state.Value, error) {
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	v, ok := n.property(name)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "property %q at %q", name, t.path)
	}
	return v, nil
}

// Child returns a handle on the named child, or ErrNotFound.
func (t *Tree) Child(name string) (*Tree, error) {
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	if !n.hasChild(name) {
		return nil, errors.Wrapf(ErrNotFound, "node %q", paths.Concat(t.path, name))
	}
	return &Tree{root: t.root, path: paths.Concat(t.path, name)}, nil
}

func (t *Tree) HasChild(name string) (bool, error) {
	n, err := t.resolve()
	if err != nil {
		return false, err
	}
	return n.hasChild(name), nil
}

func (t *Tree) ChildrenCount() (int, error) {
	n, err := t.resolve()
	if err != nil {
		return 0, err
	}
	return len(n.childNames()), nil
}

func (t *Tree) PropertyCount() (int, error) {
	n, err := t.resolve()
	if err != nil {
		return 0, err
	}
	return len(n.propertyNames()), nil
}

// ChildNames returns the visible child names in the overlay's
// deterministic iteration order (insertion order).
func (t *Tree) ChildNames() ([]string, error) {
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	return n.childNames(), nil
}

// PropertyNames returns the visible property names in iteration order.
func (t *Tree) PropertyNames() ([]string, error) {
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	return n.propertyNames(), nil
}

// IterChildren calls cb for each visible child in iteration order,
// stopping early if cb returns true. The sequence restarts from the
// beginning on every call and is stable for a given overlay state.
func (t *Tree) IterChildren(cb func(name string, child *Tree) (stop bool)) error {
	n, err := t.resolve()
	if err != nil {
		return err
	}
	for _, name := range n.childNames() {
		if cb(name, &Tree{root: t.root, path: paths.Concat(t.path, name)}) {
			return nil
		}
	}
	return nil
}

// IterProperties calls cb for each visible property in iteration
// order, stopping early if cb returns true.
func (t *Tree) IterProperties(cb func(name string, v state.Value) (stop bool)) error {
	n, err := t.resolve()
	if err != nil {
		return err
	}
	for _, name := range n.propertyNames() {
		v, ok := n.property(name)
		if !ok {
			continue
		}
		if cb(name, v) {
			return nil
		}
	}
	return nil
}

// NodeState materializes the subtree under this handle into an
// immutable snapshot, equivalent to reading everything through the
// overlay.
func (t *Tree) NodeState() (*state.NodeState, error) {
	n, err := t.resolve()
	if err != nil {
		return nil, err
	}
	return n.materialize(), nil
}
