package tree

import (
	"context"

	"github.com/attic-labs/treekernel/kernel"
	"github.com/attic-labs/treekernel/paths"
	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Root is a session over one workspace subtree: it owns the working
// tree (overlay) rooted at the workspace path, remembers the revision
// it was opened against, and turns the session's mutations into one
// atomic diff at commit time.
//
// A Root is single-writer: calls on it and on its Tree handles must
// not race. Separate Roots over the same store are fully isolated
// until they commit.
type Root struct {
	store     kernel.Store
	logger    *zap.Logger
	id        string
	workspace string

	rev     kernel.Revision  // base revision this session reads from
	base    *state.NodeState // workspace snapshot at rev
	node    *node            // overlay root
	journal []kernel.Op      // workspace-relative primitive ops
}

// ID returns the session's correlation id.
func (r *Root) ID() string {
	return r.id
}

// WorkspacePath returns the store-absolute path this session is
// rooted at.
func (r *Root) WorkspacePath() string {
	return r.workspace
}

// BaseRevision returns the revision the session currently reads from.
// It advances only on successful Commit or Rebase.
func (r *Root) BaseRevision() kernel.Revision {
	return r.rev
}

// Tree returns a handle on the node at the workspace-relative path,
// failing with ErrNotFound if nothing is there.
func (r *Root) Tree(path string) (*Tree, error) {
	if !paths.IsValid(path) {
		return nil, errors.Wrapf(ErrInvalidArgument, "malformed path %q", path)
	}
	if _, ok := r.node.resolve(paths.Split(path)); !ok {
		return nil, errors.Wrapf(ErrNotFound, "no node at %q", path)
	}
	return &Tree{root: r, path: path}, nil
}

// Move detaches the node at source and re-attaches the same overlay
// subtree at dest, preserving its nested overlay state. Handles held
// on the old path go stale; the subtree is reachable at dest.
func (r *Root) Move(source, dest string) error {
	srcNode, destParent, destName, err := r.moveEndpoints(source, dest)
	if err != nil {
		return err
	}
	// Structural cycle check against the live overlay: walking into
	// your own subtree cannot be fooled by earlier uncommitted moves.
	if srcNode == destParent || srcNode.isAncestorOf(destParent) {
		return errors.Wrapf(ErrInvalidArgument, "cannot move %q into its own subtree %q", source, dest)
	}

	parent := srcNode.parent
	detached := parent.detachChild(srcNode.name)
	destParent.attach(destName, detached)
	r.journal = append(r.journal, kernel.Move(source, dest))
	return nil
}

// Copy deep-duplicates the value of the subtree at source into a new
// subtree at dest. No overlay state is shared: subsequent edits to
// either side are invisible to the other. Copying into the source's
// own subtree is permitted.
func (r *Root) Copy(source, dest string) error {
	srcNode, destParent, destName, err := r.moveEndpoints(source, dest)
	if err != nil {
		return err
	}
	destParent.attach(destName, srcNode.deepCopy(destParent, destName))
	r.journal = append(r.journal, kernel.Copy(source, dest))
	return nil
}

// moveEndpoints validates and resolves the shared move/copy endpoints.
func (r *Root) moveEndpoints(source, dest string) (srcNode, destParent *node, destName string, err error) {
	if !paths.IsValid(source) || !paths.IsValid(dest) {
		return nil, nil, "", errors.Wrapf(ErrInvalidArgument, "malformed path in %q -> %q", source, dest)
	}
	if source == paths.Root {
		return nil, nil, "", errors.Wrap(ErrInvalidArgument, "cannot relocate the workspace root")
	}
	if dest == paths.Root {
		return nil, nil, "", errors.Wrap(ErrInvalidArgument, "destination is the workspace root")
	}
	srcNode, ok := r.node.resolve(paths.Split(source))
	if !ok {
		return nil, nil, "", errors.Wrapf(ErrNotFound, "no node at %q", source)
	}
	destParent, ok = r.node.resolve(paths.Split(paths.Parent(dest)))
	if !ok {
		return nil, nil, "", errors.Wrapf(ErrInvalidArgument, "no destination parent at %q", paths.Parent(dest))
	}
	destName = paths.Name(dest)
	if destParent.hasChild(destName) {
		return nil, nil, "", errors.Wrapf(ErrAlreadyExists, "node %q", dest)
	}
	return srcNode, destParent, destName, nil
}

// Commit submits the session's diff, conditioned on its base revision,
// as one atomic unit. On success the session resets onto the new
// revision with an empty overlay: a fresh read through any handle
// sees exactly the committed content. On ErrCommitConflict nothing was
// applied; Rebase and retry, or discard. An empty diff is a no-op.
func (r *Root) Commit(ctx context.Context) error {
	if len(r.journal) == 0 {
		return nil
	}

	ops := make([]kernel.Op, len(r.journal))
	for i, op := range r.journal {
		ops[i] = op.Rebased(paths.Root, r.workspace)
	}

	rev, err := r.store.Commit(ctx, ops, r.rev)
	if err != nil {
		if errors.Is(err, kernel.ErrOptimisticLockFailed) {
			r.logger.Warn("commit conflict",
				zap.String("session", r.id),
				zap.Stringer("base", r.rev))
			return errors.Wrapf(ErrCommitConflict, "base revision %s superseded", r.rev)
		}
		return errors.Wrapf(ErrCommitFailed, "%v", err)
	}

	base, err := r.store.NodeState(ctx, r.workspace, rev)
	if err != nil {
		return errors.Wrapf(ErrCommitFailed, "rereading workspace after commit: %v", err)
	}

	r.logger.Info("committed",
		zap.String("session", r.id),
		zap.Stringer("revision", rev),
		zap.Int("ops", len(ops)))

	r.rev = rev
	r.base = base
	r.node = newNode(nil, "", base)
	r.journal = nil
	return nil
}

// Rebase re-anchors the session on the current head and replays its
// uncommitted journal over the new base. On failure (for example a
// replayed op now collides) the session is left unchanged.
func (r *Root) Rebase(ctx context.Context) error {
	head, err := r.store.HeadRevision(ctx)
	if err != nil {
		return errors.Wrapf(ErrCommitFailed, "reading head: %v", err)
	}
	if head.Equals(r.rev) {
		return nil
	}
	base, err := r.store.NodeState(ctx, r.workspace, head)
	if err != nil {
		if errors.Is(err, kernel.ErrNotFound) {
			return errors.Wrapf(ErrNotFound, "workspace %q gone at %s", r.workspace, head)
		}
		return errors.Wrapf(ErrCommitFailed, "reading workspace at head: %v", err)
	}

	// Replay against a scratch session; swap in only if every op
	// still applies.
	scratch := &Root{
		store:     r.store,
		logger:    zap.NewNop(),
		id:        r.id,
		workspace: r.workspace,
		rev:       head,
		base:      base,
		node:      newNode(nil, "", base),
	}
	for _, op := range r.journal {
		if err := scratch.replay(op); err != nil {
			return errors.Wrapf(err, "rebasing %s onto %s", op, head)
		}
	}

	r.logger.Info("rebased",
		zap.String("session", r.id),
		zap.Stringer("from", r.rev),
		zap.Stringer("onto", head),
		zap.Int("ops", len(r.journal)))

	r.rev = head
	r.base = base
	r.node = scratch.node
	r.journal = scratch.journal
	return nil
}

// replay re-applies one journaled op through the public mutation
// surface, re-validating it against the new base.
func (r *Root) replay(op kernel.Op) error {
	switch op.Kind {
	case kernel.AddNodeOp:
		t, err := r.Tree(paths.Parent(op.Path))
		if err != nil {
			return err
		}
		_, err = t.AddChild(paths.Name(op.Path))
		return err
	case kernel.RemoveNodeOp:
		t, err := r.Tree(paths.Parent(op.Path))
		if err != nil {
			return err
		}
		return t.RemoveChild(paths.Name(op.Path))
	case kernel.SetPropertyOp:
		t, err := r.Tree(op.Path)
		if err != nil {
			return err
		}
		return t.SetProperty(op.Name, op.Value)
	case kernel.RemovePropertyOp:
		t, err := r.Tree(op.Path)
		if err != nil {
			return err
		}
		return t.RemoveProperty(op.Name)
	case kernel.MoveOp:
		return r.Move(op.Source, op.Dest)
	case kernel.CopyOp:
		return r.Copy(op.Source, op.Dest)
	}
	return errors.Wrapf(ErrInvalidArgument, "unknown op kind %d", op.Kind)
}
