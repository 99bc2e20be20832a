package kernel

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/attic-labs/treekernel/ref"
	"github.com/attic-labs/treekernel/state"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

var (
	headKey    = []byte("/head")
	revPrefix  = []byte("/rev/")
	nodePrefix = []byte("/node/")
)

func nodeKey(r ref.Ref) []byte {
	digest := r.Digest()
	return append(append([]byte(nil), nodePrefix...), digest[:]...)
}

func revKey(ordinal uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", revPrefix, ordinal))
}

// LevelDBStore is a durable Store. Node records are stored once per
// content address and snappy-compressed, so subtrees shared between
// revisions occupy disk once. The head is advanced with a
// compare-and-swap under the store mutex; the head write is the commit
// point and is synced.
type LevelDBStore struct {
	db    *leveldb.DB
	mu    sync.Mutex
	head  Revision
	cache map[ref.Ref]*state.NodeState
}

func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errors.New("leveldb store dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "creating store dir")
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: opt.NoCompression, // records are snappy-compressed already
		Filter:      filter.NewBloomFilter(10),
		WriteBuffer: 1 << 24, // 16MiB
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening leveldb")
	}

	l := &LevelDBStore{db: db, cache: map[ref.Ref]*state.NodeState{}}
	if err := l.loadHead(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// loadHead reads the persisted head, bootstrapping a fresh store with
// revision 0 over the empty tree.
func (l *LevelDBStore) loadHead() error {
	val, err := l.db.Get(headKey, nil)
	if err == ldberrors.ErrNotFound {
		empty := state.Empty()
		rev := NewRevision(0, empty.Ref())
		if err := l.putNodes(empty); err != nil {
			return err
		}
		if err := l.db.Put(revKey(0), []byte(empty.Ref().String()), nil); err != nil {
			return errors.Wrap(err, "writing initial revision")
		}
		if err := l.db.Put(headKey, []byte(rev.String()), &opt.WriteOptions{Sync: true}); err != nil {
			return errors.Wrap(err, "writing initial head")
		}
		l.head = rev
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading head")
	}
	rev, err := ParseRevision(string(val))
	if err != nil {
		return errors.Wrap(err, "corrupt head")
	}
	l.head = rev
	return nil
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}

func (l *LevelDBStore) HeadRevision(ctx context.Context) (Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

func (l *LevelDBStore) NodeState(ctx context.Context, path string, rev Revision) (*state.NodeState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.db.Get(revKey(rev.Ordinal()), nil)
	if err == ldberrors.ErrNotFound || (err == nil && string(stored) != rev.Root().String()) {
		return nil, errors.Wrapf(ErrNotFound, "unknown revision %s", rev)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading revision")
	}

	root, err := l.loadNode(rev.Root())
	if err != nil {
		return nil, err
	}
	ns, ok := root.At(path)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "no node at %q in %s", path, rev)
	}
	return ns, nil
}

func (l *LevelDBStore) Commit(ctx context.Context, ops []Op, base Revision) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !base.Equals(l.head) {
		return Revision{}, errors.Wrapf(ErrOptimisticLockFailed, "base %s, head %s", base, l.head)
	}
	if len(ops) == 0 {
		return l.head, nil
	}

	root, err := l.loadNode(l.head.Root())
	if err != nil {
		return Revision{}, err
	}
	newRoot, err := applyOps(root, ops)
	if err != nil {
		return Revision{}, err
	}

	rev := NewRevision(base.Ordinal()+1, newRoot.Ref())
	if err := l.putNodes(newRoot); err != nil {
		return Revision{}, err
	}
	if err := l.db.Put(revKey(rev.Ordinal()), []byte(newRoot.Ref().String()), nil); err != nil {
		return Revision{}, errors.Wrap(err, "writing revision")
	}
	// Commit point. Everything before this is unreachable garbage if
	// the head write never lands.
	if err := l.db.Put(headKey, []byte(rev.String()), &opt.WriteOptions{Sync: true}); err != nil {
		return Revision{}, errors.Wrap(err, "writing head")
	}
	l.head = rev
	return rev, nil
}

// Revisions lists the committed revisions in order.
func (l *LevelDBStore) Revisions(ctx context.Context) ([]Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var revs []Revision
	iter := l.db.NewIterator(ldbutil.BytesPrefix(revPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		ordinal := uint64(0)
		if _, err := fmt.Sscanf(string(iter.Key()[len(revPrefix):]), "%d", &ordinal); err != nil {
			return nil, errors.Wrapf(err, "corrupt revision key %q", iter.Key())
		}
		root, ok := ref.MaybeParse(string(iter.Value()))
		if !ok {
			return nil, errors.Errorf("corrupt revision value %q", iter.Value())
		}
		revs = append(revs, NewRevision(ordinal, root))
	}
	return revs, errors.Wrap(iter.Error(), "iterating revisions")
}

// StoreStats summarizes physical store contents.
type StoreStats struct {
	Nodes     uint64
	Revisions uint64
	NodeBytes uint64 // compressed record bytes
}

func (l *LevelDBStore) Stats(ctx context.Context) (StoreStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := StoreStats{}
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key())
		switch {
		case strings.HasPrefix(key, string(nodePrefix)):
			stats.Nodes++
			stats.NodeBytes += uint64(len(iter.Value()))
		case strings.HasPrefix(key, string(revPrefix)):
			stats.Revisions++
		}
	}
	return stats, errors.Wrap(iter.Error(), "iterating store")
}

// loadNode reads the record at r and its descendants, with a cache so
// shared subtrees load once per store handle.
func (l *LevelDBStore) loadNode(r ref.Ref) (*state.NodeState, error) {
	if ns, ok := l.cache[r]; ok {
		return ns, nil
	}
	compressed, err := l.db.Get(nodeKey(r), nil)
	if err == ldberrors.ErrNotFound {
		return nil, errors.Wrapf(ErrNotFound, "missing node record %s", r)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading node record")
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing node record %s", r)
	}
	ns, err := state.DecodeRecord(data, l.loadNode)
	if err != nil {
		return nil, err
	}
	if ns.Ref() != r {
		return nil, errors.Errorf("corrupt node record: stored as %s, decodes to %s", r, ns.Ref())
	}
	l.cache[r] = ns
	return ns, nil
}

// putNodes writes the records for root and any descendants not yet
// present. Descent stops at subtrees the store already has, which is
// what keeps commits proportional to the change, not the tree.
func (l *LevelDBStore) putNodes(root *state.NodeState) error {
	batch := &leveldb.Batch{}
	var written []*state.NodeState
	err := state.Walk(root, func(ns *state.NodeState) (bool, error) {
		if _, ok := l.cache[ns.Ref()]; ok {
			return false, nil
		}
		exists, err := l.db.Has(nodeKey(ns.Ref()), nil)
		if err != nil {
			return false, errors.Wrap(err, "checking node record")
		}
		if exists {
			l.cache[ns.Ref()] = ns
			return false, nil
		}
		batch.Put(nodeKey(ns.Ref()), snappy.Encode(nil, state.EncodeRecord(ns)))
		written = append(written, ns)
		return true, nil
	})
	if err != nil {
		return err
	}
	if err := l.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "writing node records")
	}
	for _, ns := range written {
		l.cache[ns.Ref()] = ns
	}
	return nil
}
