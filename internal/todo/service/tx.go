package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

// StoreTx provides a transactional boundary for todo and tag mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
// Stores called with the ctx handed to fn take part in the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	numTxShards      = 64
	defaultTxTimeout = 5 * time.Second
)

// InMemoryTx serializes units of work per user with sharded mutexes. The
// in-memory stores do not roll back, so callers validate before writing.
type InMemoryTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewInMemoryTx() *InMemoryTx {
	return &InMemoryTx{timeout: defaultTxTimeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// selectShard hashes the user bound by withTxUser, defaulting to shard 0.
func (t *InMemoryTx) selectShard(ctx context.Context) int {
	userID, ok := ctx.Value(txUserKeyCtx).(id.UserID)
	if !ok {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return int(h.Sum32() % numTxShards)
}

type txUserKey struct{}

var txUserKeyCtx = txUserKey{}

func withTxUser(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, txUserKeyCtx, userID)
}

func (s *Service) inTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(withTxUser(ctx, userID), fn)
}
