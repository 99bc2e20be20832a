package kernel

import (
	"github.com/attic-labs/treekernel/d"
	"github.com/attic-labs/treekernel/paths"
	"github.com/attic-labs/treekernel/state"
)

// OpKind enumerates the closed set of primitive diff operations.
type OpKind uint8

const (
	AddNodeOp OpKind = iota
	RemoveNodeOp
	SetPropertyOp
	RemovePropertyOp
	MoveOp
	CopyOp
)

// Op is one primitive diff operation. Which fields are meaningful
// depends on Kind: Path for node and property ops, Name and Value for
// property ops, Source and Dest for move and copy. Ops compose in
// submission order and are applied atomically as a unit by Commit.
type Op struct {
	Kind   OpKind
	Path   string
	Name   string
	Value  state.Value
	Source string
	Dest   string
}

func AddNode(path string) Op {
	return Op{Kind: AddNodeOp, Path: path}
}

func RemoveNode(path string) Op {
	return Op{Kind: RemoveNodeOp, Path: path}
}

func SetProperty(path, name string, v state.Value) Op {
	return Op{Kind: SetPropertyOp, Path: path, Name: name, Value: v}
}

func RemoveProperty(path, name string) Op {
	return Op{Kind: RemovePropertyOp, Path: path, Name: name}
}

func Move(source, dest string) Op {
	return Op{Kind: MoveOp, Source: source, Dest: dest}
}

func Copy(source, dest string) Op {
	return Op{Kind: CopyOp, Source: source, Dest: dest}
}

// String renders the diff syntax used in logs: +p:{} -p ^p/n:v >s:d *s:d.
func (op Op) String() string {
	switch op.Kind {
	case AddNodeOp:
		return "+" + op.Path + ":{}"
	case RemoveNodeOp:
		return "-" + op.Path
	case SetPropertyOp:
		return "^" + paths.Concat(op.Path, op.Name) + ":" + op.Value.String()
	case RemovePropertyOp:
		return "^" + paths.Concat(op.Path, op.Name) + ":null"
	case MoveOp:
		return ">" + op.Source + ":" + op.Dest
	case CopyOp:
		return "*" + op.Source + ":" + op.Dest
	}
	d.Chk.Fail("unknown op kind", "%d", op.Kind)
	return ""
}

// Rebased returns op with every path re-anchored from oldPrefix to
// newPrefix. Used when translating session-relative journals into
// store-absolute diffs.
func (op Op) Rebased(oldPrefix, newPrefix string) Op {
	rebase := func(p string) string {
		if p == "" {
			return p
		}
		d.Chk.True(p == oldPrefix || oldPrefix == paths.Root || paths.IsAncestor(oldPrefix, p),
			"path %q outside prefix %q", p, oldPrefix)
		if oldPrefix == paths.Root {
			if newPrefix == paths.Root {
				return p
			}
			if p == paths.Root {
				return newPrefix
			}
			return newPrefix + p
		}
		rel := p[len(oldPrefix):]
		if rel == "" {
			return newPrefix
		}
		if newPrefix == paths.Root {
			return rel
		}
		return newPrefix + rel
	}

	op.Path = rebase(op.Path)
	op.Source = rebase(op.Source)
	op.Dest = rebase(op.Dest)
	return op
}
