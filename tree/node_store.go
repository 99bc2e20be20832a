package tree

import (
	"context"

	"github.com/attic-labs/treekernel/kernel"
	"github.com/attic-labs/treekernel/paths"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NodeStore wraps a backing store and mints session Roots anchored at
// the current head. It holds no mutable state of its own; the head
// lives in the backing store and advances only through commits.
type NodeStore struct {
	store  kernel.Store
	logger *zap.Logger
}

func NewNodeStore(store kernel.Store) *NodeStore {
	return &NodeStore{store: store, logger: zap.NewNop()}
}

// SetLogger installs a logger for session lifecycle events. The
// default is a nop logger.
func (s *NodeStore) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger
}

// HeadRevision returns the current committed head. Pure read.
func (s *NodeStore) HeadRevision(ctx context.Context) (kernel.Revision, error) {
	return s.store.HeadRevision(ctx)
}

// OpenRoot opens a session over the subtree at workspacePath, anchored
// at the current head. Fails with ErrNotFound if the path does not
// exist at head. Sessions already open elsewhere are unaffected by
// later commits until they Commit or Rebase themselves.
func (s *NodeStore) OpenRoot(ctx context.Context, workspacePath string) (*Root, error) {
	if !paths.IsValid(workspacePath) {
		return nil, errors.Wrapf(ErrInvalidArgument, "malformed workspace path %q", workspacePath)
	}
	head, err := s.store.HeadRevision(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrCommitFailed, "reading head: %v", err)
	}
	base, err := s.store.NodeState(ctx, workspacePath, head)
	if err != nil {
		if errors.Is(err, kernel.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "no workspace at %q in %s", workspacePath, head)
		}
		return nil, err
	}

	r := &Root{
		store:     s.store,
		logger:    s.logger,
		id:        uuid.New().String(),
		workspace: workspacePath,
		rev:       head,
		base:      base,
		node:      newNode(nil, "", base),
	}
	s.logger.Info("opened session root",
		zap.String("session", r.id),
		zap.String("workspace", workspacePath),
		zap.Stringer("revision", head))
	return r, nil
}
