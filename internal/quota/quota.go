// Package quota enforces the per-user daily debate allowance.
//
// Ships an in-memory fixed-window counter keyed by user id; deployments
// that need cross-instance coordination can substitute a shared-store
// implementation — the Limiter interface is the contract. The quota check
// runs before matchmaking so a rejected start leaves no partial state.
package quota

import "context"

// Limiter decides whether a user may start another debate today.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one unit of the key's daily allowance. Remaining is
	// the allowance left after this call (0 when the call was denied).
	// A limiter malfunction should be treated as fail-open by callers.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)

	// Limit returns the configured daily allowance.
	Limit() int

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when quotas are disabled.
type NoopLimiter struct{}

// Allow always permits, reporting an effectively unlimited remainder.
func (NoopLimiter) Allow(context.Context, string) (bool, int, error) { return true, 1 << 30, nil }

// Limit reports an effectively unlimited allowance.
func (NoopLimiter) Limit() int { return 1 << 30 }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
