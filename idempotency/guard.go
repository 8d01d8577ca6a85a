package idempotency

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Operation produces the result to record for an idempotency key.
type Operation func(ctx context.Context) ([]byte, error)

// Guard deduplicates operations by idempotency key. The first successful
// result for a key is recorded and replayed to later callers until its TTL
// expires. Concurrent callers sharing a key are coalesced onto a single
// in-flight execution.
//
// Deduplication is per process only. It never provides exactly-once
// execution across processes or restarts.
type Guard struct {
	store   Store
	policy  Policy
	sfGroup singleflight.Group // coalesces concurrent duplicates
}

// NewGuard creates a guard over the given store.
// If store is nil, an in-memory store is used.
func NewGuard(store Store, policy Policy) *Guard {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Guard{
		store:  store,
		policy: policy,
	}
}

// Do runs op under the given idempotency key.
// If a result is already recorded for the key, it is returned without
// invoking op. Concurrent calls with the same key share one execution.
// A ttl of zero uses the policy default. Errors are never recorded, so a
// failed operation can be retried with the same key.
func (g *Guard) Do(ctx context.Context, key string, ttl time.Duration, op Operation) ([]byte, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	if !g.policy.Enabled() && ttl <= 0 {
		return op(ctx)
	}

	if cached, ok := g.store.Get(ctx, key); ok {
		return cached, nil
	}

	v, err, _ := g.sfGroup.Do(key, func() (any, error) {
		// Recheck under the flight: a just-finished duplicate may have
		// recorded the result between the miss and this call.
		if cached, ok := g.store.Get(ctx, key); ok {
			return cached, nil
		}

		result, err := op(ctx)
		if err != nil {
			return nil, err
		}

		if effective := g.policy.EffectiveTTL(ttl); effective > 0 {
			_ = g.store.Set(ctx, key, result, effective)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result, _ := v.([]byte)
	return result, nil
}

// DoKeyed derives the key from an operation name and input using keyer, then
// runs Do. A nil keyer uses the default SHA-256 keyer.
func (g *Guard) DoKeyed(ctx context.Context, keyer Keyer, operation string, input any, ttl time.Duration, op Operation) ([]byte, error) {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	key, err := keyer.Key(operation, input)
	if err != nil {
		return nil, err
	}
	return g.Do(ctx, key, ttl, op)
}

// Forget removes the recorded result for a key, forcing the next Do to
// execute the operation again.
func (g *Guard) Forget(ctx context.Context, key string) error {
	g.sfGroup.Forget(key)
	return g.store.Delete(ctx, key)
}
