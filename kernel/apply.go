package kernel

import (
	"github.com/attic-labs/treekernel/paths"
	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
)

// applyOps transforms root by ops in submission order, returning the
// new root. Any failure aborts the whole sequence; callers only
// install the result on success, which is what makes Commit atomic.
func applyOps(root *state.NodeState, ops []Op) (*state.NodeState, error) {
	for _, op := range ops {
		next, err := applyOp(root, op)
		if err != nil {
			return nil, errors.Wrapf(err, "applying %s", op)
		}
		root = next
	}
	return root, nil
}

func applyOp(root *state.NodeState, op Op) (*state.NodeState, error) {
	switch op.Kind {
	case AddNodeOp:
		return applyAddNode(root, op.Path)
	case RemoveNodeOp:
		return applyRemoveNode(root, op.Path)
	case SetPropertyOp:
		return applySetProperty(root, op.Path, op.Name, op.Value)
	case RemovePropertyOp:
		return applyRemoveProperty(root, op.Path, op.Name)
	case MoveOp:
		return applyMove(root, op.Source, op.Dest)
	case CopyOp:
		return applyCopy(root, op.Source, op.Dest)
	}
	return nil, errors.Errorf("unknown op kind %d", op.Kind)
}

func applyAddNode(root *state.NodeState, path string) (*state.NodeState, error) {
	if !paths.IsValid(path) || path == paths.Root {
		return nil, errors.Errorf("invalid node path %q", path)
	}
	name := paths.Name(path)
	return state.UpdateAt(root, paths.Parent(path), func(parent *state.NodeState) (*state.NodeState, error) {
		if _, ok := parent.Child(name); ok {
			return nil, errors.Errorf("node %q already exists", path)
		}
		return parent.WithChild(name, state.Empty()), nil
	})
}

func applyRemoveNode(root *state.NodeState, path string) (*state.NodeState, error) {
	if !paths.IsValid(path) || path == paths.Root {
		return nil, errors.Errorf("invalid node path %q", path)
	}
	name := paths.Name(path)
	return state.UpdateAt(root, paths.Parent(path), func(parent *state.NodeState) (*state.NodeState, error) {
		if _, ok := parent.Child(name); !ok {
			return nil, errors.Errorf("no node at %q", path)
		}
		return parent.WithoutChild(name), nil
	})
}

func applySetProperty(root *state.NodeState, path, name string, v state.Value) (*state.NodeState, error) {
	if !paths.IsValid(path) {
		return nil, errors.Errorf("invalid node path %q", path)
	}
	if name == "" || v == nil {
		return nil, errors.Errorf("invalid property %q at %q", name, path)
	}
	return state.UpdateAt(root, path, func(ns *state.NodeState) (*state.NodeState, error) {
		return ns.WithProperty(name, v), nil
	})
}

func applyRemoveProperty(root *state.NodeState, path, name string) (*state.NodeState, error) {
	if !paths.IsValid(path) {
		return nil, errors.Errorf("invalid node path %q", path)
	}
	return state.UpdateAt(root, path, func(ns *state.NodeState) (*state.NodeState, error) {
		if _, ok := ns.Property(name); !ok {
			return nil, errors.Errorf("no property %q at %q", name, path)
		}
		return ns.WithoutProperty(name), nil
	})
}

func applyMove(root *state.NodeState, source, dest string) (*state.NodeState, error) {
	if !paths.IsValid(source) || !paths.IsValid(dest) || source == paths.Root || dest == paths.Root {
		return nil, errors.Errorf("invalid move %q -> %q", source, dest)
	}
	// At this boundary ops arrive as paths, so the cycle guard is a
	// segment-prefix check. The session layer already applied the
	// structural check against its live overlay.
	if source == dest || paths.IsAncestor(source, dest) {
		return nil, errors.Errorf("cannot move %q into its own subtree %q", source, dest)
	}
	sub, ok := root.At(source)
	if !ok {
		return nil, errors.Errorf("no node at %q", source)
	}
	removed, err := applyRemoveNode(root, source)
	if err != nil {
		return nil, err
	}
	return attach(removed, dest, sub)
}

func applyCopy(root *state.NodeState, source, dest string) (*state.NodeState, error) {
	if !paths.IsValid(source) || !paths.IsValid(dest) || source == paths.Root || dest == paths.Root {
		return nil, errors.Errorf("invalid copy %q -> %q", source, dest)
	}
	sub, ok := root.At(source)
	if !ok {
		return nil, errors.Errorf("no node at %q", source)
	}
	// Snapshots are immutable, so attaching the source snapshot itself
	// gives the copy value semantics with full structural sharing.
	return attach(root, dest, sub)
}

func attach(root *state.NodeState, dest string, sub *state.NodeState) (*state.NodeState, error) {
	name := paths.Name(dest)
	return state.UpdateAt(root, paths.Parent(dest), func(parent *state.NodeState) (*state.NodeState, error) {
		if _, ok := parent.Child(name); ok {
			return nil, errors.Errorf("node %q already exists", dest)
		}
		return parent.WithChild(name, sub), nil
	})
}
