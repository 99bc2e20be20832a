package kernel

import (
	"context"
	"testing"

	"github.com/attic-labs/treekernel/state"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreBootstrap(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	head, err := ms.HeadRevision(ctx)
	assert.NoError(err)
	assert.Equal(uint64(0), head.Ordinal())

	root, err := ms.NodeState(ctx, "/", head)
	assert.NoError(err)
	assert.True(root.Equals(state.Empty()))

	_, err = ms.NodeState(ctx, "/missing", head)
	assert.True(errors.Is(err, ErrNotFound))

	_, err = ms.NodeState(ctx, "/", NewRevision(42, root.Ref()))
	assert.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreCommit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	head, _ := ms.HeadRevision(ctx)
	rev, err := ms.Commit(ctx, []Op{
		AddNode("/test"),
		AddNode("/test/root"),
		SetProperty("/test/root", "p", state.NewString("v")),
	}, head)
	assert.NoError(err)
	assert.True(head.Less(rev))

	ns, err := ms.NodeState(ctx, "/test/root", rev)
	assert.NoError(err)
	v, ok := ns.Property("p")
	assert.True(ok)
	assert.True(v.Equals(state.NewString("v")))

	// The old revision still serves its snapshot.
	_, err = ms.NodeState(ctx, "/test", head)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreOpKinds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	head, _ := ms.HeadRevision(ctx)
	rev, err := ms.Commit(ctx, []Op{
		AddNode("/a"),
		AddNode("/a/b"),
		SetProperty("/a/b", "p", state.Number(1)),
		AddNode("/c"),
		Move("/a/b", "/c/b"),
		Copy("/c", "/a/c2"),
		RemoveProperty("/c/b", "p"),
		RemoveNode("/c/b"),
	}, head)
	assert.NoError(err)

	// Move relocated the node.
	_, err = ms.NodeState(ctx, "/a/b", rev)
	assert.True(errors.Is(err, ErrNotFound))

	// The copy took the pre-removal value of /c, including /c/b with
	// its property.
	copied, err := ms.NodeState(ctx, "/a/c2/b", rev)
	assert.NoError(err)
	v, ok := copied.Property("p")
	assert.True(ok)
	assert.True(v.Equals(state.Number(1)))

	// The move source's later removal did not touch the copy.
	_, err = ms.NodeState(ctx, "/c/b", rev)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreOptimisticLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(ctx)
	rev1, err := ms.Commit(ctx, []Op{AddNode("/a")}, base)
	assert.NoError(err)

	// A second commit against the superseded base must fail and leave
	// the head untouched.
	_, err = ms.Commit(ctx, []Op{AddNode("/b")}, base)
	assert.True(errors.Is(err, ErrOptimisticLockFailed))

	head, _ := ms.HeadRevision(ctx)
	assert.True(head.Equals(rev1))
	_, err = ms.NodeState(ctx, "/b", head)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreCommitAtomicity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(ctx)

	// The second op fails; the first must not land.
	_, err := ms.Commit(ctx, []Op{
		AddNode("/a"),
		RemoveNode("/nope"),
	}, base)
	assert.Error(err)

	head, _ := ms.HeadRevision(ctx)
	assert.True(head.Equals(base))
	_, err = ms.NodeState(ctx, "/a", head)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreRejectsRootRemoval(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(ctx)
	_, err := ms.Commit(ctx, []Op{RemoveNode("/")}, base)
	assert.Error(err)
	_, err = ms.Commit(ctx, []Op{Move("/", "/a")}, base)
	assert.Error(err)
}

func TestMemoryStoreMoveCycleGuard(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(ctx)
	rev, err := ms.Commit(ctx, []Op{AddNode("/a"), AddNode("/a/b")}, base)
	assert.NoError(err)

	_, err = ms.Commit(ctx, []Op{Move("/a", "/a/b/c")}, rev)
	assert.Error(err)
	_, err = ms.Commit(ctx, []Op{Move("/a", "/a")}, rev)
	assert.Error(err)

	// Copy into own subtree is permitted: it duplicates, not relocates.
	rev2, err := ms.Commit(ctx, []Op{Copy("/a", "/a/b/c")}, rev)
	assert.NoError(err)
	_, err = ms.NodeState(ctx, "/a/b/c/b", rev2)
	assert.NoError(err)
}

func TestMemoryStoreEmptyCommit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(ctx)
	rev, err := ms.Commit(ctx, nil, base)
	assert.NoError(err)
	assert.True(rev.Equals(base))
}

func TestMemoryStoreCancelledCommit(t *testing.T) {
	assert := assert.New(t)
	ms := NewMemoryStore()

	base, _ := ms.HeadRevision(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ms.Commit(ctx, []Op{AddNode("/a")}, base)
	assert.Error(err)

	head, _ := ms.HeadRevision(context.Background())
	assert.True(head.Equals(base))
}
