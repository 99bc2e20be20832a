// Package kernel defines the backing-store boundary: an append-only,
// revision-addressed primitive that serves immutable node snapshots
// and accepts atomic diffs conditioned on a base revision. Sessions
// above it never see partial application: a diff lands as a unit
// against the head it names, or not at all.
package kernel

import (
	"context"
	"errors"

	"github.com/attic-labs/treekernel/state"
)

var (
	// ErrNotFound reports a path or revision that does not exist.
	ErrNotFound = errors.New("node not found")

	// ErrOptimisticLockFailed reports a commit whose base revision is
	// no longer the head; the diff was not applied.
	ErrOptimisticLockFailed = errors.New("optimistic lock failed on head update")
)

// Store is the backing-store contract consumed by the session layer.
// Implementations must be safe for concurrent use.
type Store interface {
	// HeadRevision returns the current committed head. Pure read.
	HeadRevision(ctx context.Context) (Revision, error)

	// NodeState returns the node at path within rev, or ErrNotFound.
	NodeState(ctx context.Context, path string, rev Revision) (*state.NodeState, error)

	// Commit applies ops atomically on top of base, returning the new
	// head. If base is no longer the head the diff is not applied and
	// Commit returns ErrOptimisticLockFailed. Any validation failure
	// also leaves the store unchanged.
	Commit(ctx context.Context, ops []Op, base Revision) (Revision, error)
}
