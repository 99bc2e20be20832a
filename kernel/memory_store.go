package kernel

import (
	"context"
	"sync"

	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
)

// MemoryStore is an in-process Store. Revision 0 is the empty tree, so
// a fresh store resolves "/" immediately. All committed revisions stay
// reachable until the store itself is dropped.
type MemoryStore struct {
	mu    sync.Mutex
	head  Revision
	roots map[uint64]*state.NodeState
}

func NewMemoryStore() *MemoryStore {
	empty := state.Empty()
	return &MemoryStore{
		head:  NewRevision(0, empty.Ref()),
		roots: map[uint64]*state.NodeState{0: empty},
	}
}

func (ms *MemoryStore) HeadRevision(ctx context.Context) (Revision, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.head, nil
}

func (ms *MemoryStore) NodeState(ctx context.Context, path string, rev Revision) (*state.NodeState, error) {
	ms.mu.Lock()
	root, ok := ms.roots[rev.Ordinal()]
	ms.mu.Unlock()
	if !ok || root.Ref() != rev.Root() {
		return nil, errors.Wrapf(ErrNotFound, "unknown revision %s", rev)
	}
	ns, ok := root.At(path)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "no node at %q in %s", path, rev)
	}
	return ns, nil
}

func (ms *MemoryStore) Commit(ctx context.Context, ops []Op, base Revision) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !base.Equals(ms.head) {
		return Revision{}, errors.Wrapf(ErrOptimisticLockFailed, "base %s, head %s", base, ms.head)
	}
	if len(ops) == 0 {
		return ms.head, nil
	}

	root, ok := ms.roots[base.Ordinal()]
	if !ok {
		return Revision{}, errors.Wrapf(ErrNotFound, "unknown revision %s", base)
	}
	newRoot, err := applyOps(root, ops)
	if err != nil {
		return Revision{}, err
	}

	rev := NewRevision(base.Ordinal()+1, newRoot.Ref())
	ms.roots[rev.Ordinal()] = newRoot
	ms.head = rev
	return rev, nil
}
