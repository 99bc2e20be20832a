package tree

import "errors"

// The caller-visible failure taxonomy. Mutation-time failures surface
// synchronously from the mutating call and leave the overlay unchanged;
// only ErrCommitConflict and ErrCommitFailed can surface from Commit.
// Callers test with errors.Is.
var (
	// ErrNotFound reports an absent path, node, or property.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a name collision on an add, move, or
	// copy target.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument reports a malformed path, an attempt to
	// remove the workspace root, or a move into the node's own
	// subtree.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStaleHandle reports a read or write through a handle whose
	// node no longer resolves.
	ErrStaleHandle = errors.New("stale handle")

	// ErrCommitConflict reports that the session's base revision was
	// superseded by a concurrent commit; the diff was not applied.
	// Recovery is to Rebase and retry.
	ErrCommitConflict = errors.New("commit conflict")

	// ErrCommitFailed reports any other backing-store failure during
	// commit. Nothing was applied.
	ErrCommitFailed = errors.New("commit failed")
)
