// Package retry commits a session against a contended store, rebasing
// and retrying on conflict with jittered exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/attic-labs/treekernel/tree"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options bounds the retry loop. The zero value is usable.
type Options struct {
	// MaxAttempts caps the number of commit attempts. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int

	// MinBackoff and MaxBackoff bound the sleep between attempts.
	// Zero values take the defaults.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Logger receives per-attempt conflict logs. Nil means no logging.
	Logger *zap.Logger
}

const (
	DefaultMaxAttempts = 5
	defaultMinBackoff  = 10 * time.Millisecond
	defaultMaxBackoff  = time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = defaultMinBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Commit commits the session, and on ErrCommitConflict rebases onto
// the new head and tries again, up to opts.MaxAttempts times. Errors
// other than conflicts, including rebase failures, abort immediately.
// The last conflict is returned if every attempt loses the race.
func Commit(ctx context.Context, root *tree.Root, opts Options) error {
	opts = opts.withDefaults()
	b := &backoff.Backoff{
		Min:    opts.MinBackoff,
		Max:    opts.MaxBackoff,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err = root.Commit(ctx)
		if err == nil || !errors.Is(err, tree.ErrCommitConflict) {
			return err
		}

		opts.Logger.Info("commit conflict, rebasing",
			zap.String("session", root.ID()),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", opts.MaxAttempts))

		if attempt == opts.MaxAttempts {
			break
		}
		if rerr := root.Rebase(ctx); rerr != nil {
			return errors.Wrap(rerr, "rebase after conflict")
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
