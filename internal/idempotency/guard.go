// Package idempotency answers "has this reference already been applied?"
// The database unique constraint on transaction references is the source of
// truth; Redis sits in front as a best-effort seen-cache so replayed
// deliveries are usually answered without a database round trip.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

const redisKeyPrefix = "txnref"

// ReferenceLookup resolves a reference to its stored transaction.
type ReferenceLookup interface {
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
}

// Guard checks and records applied references. A nil redis client degrades to
// database-only checks.
type Guard struct {
	redis redis.Cmdable
	store ReferenceLookup
	ttl   time.Duration
}

// NewGuard builds a Guard. ttl bounds how long a reference stays in the
// seen-cache; the database record is permanent regardless.
func NewGuard(rdb redis.Cmdable, store ReferenceLookup, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Guard{redis: rdb, store: store, ttl: ttl}
}

// Seen reports whether reference has already been applied, returning the
// stored transaction when it has. Cache failures fall through to the
// database; only a database failure is an error.
func (g *Guard) Seen(ctx context.Context, reference string) (*models.Transaction, bool, error) {
	if g.redis != nil {
		err := g.redis.Get(ctx, redisKey(reference)).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			zap.L().Warn("reference seen-cache lookup failed", zap.Error(err))
		}
		// A cache hit still reads the row: callers need the stored state,
		// and the hit only tells us the read will not miss.
	}

	txn, err := g.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("check reference %s: %w", reference, err)
	}

	g.remember(ctx, reference)
	return txn, true, nil
}

// Mark records reference as applied in the seen-cache. Called after a
// successful insert; failures are logged and ignored since the unique
// constraint already guarantees correctness.
func (g *Guard) Mark(ctx context.Context, reference string) {
	g.remember(ctx, reference)
}

func (g *Guard) remember(ctx context.Context, reference string) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Set(ctx, redisKey(reference), "1", g.ttl).Err(); err != nil {
		zap.L().Warn("reference seen-cache set failed", zap.Error(err))
	}
}

func redisKey(reference string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, reference)
}
