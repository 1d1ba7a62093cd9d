package ports

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"
	"time"

	"vending-kernel/internal/core/domain"
)

// ConversationStore holds the single active flow of each actor.
// Every successful write assigns a fresh Revision to the stored state.
type ConversationStore interface {
	Get(ctx context.Context, actorID string) (*domain.ConversationState, error) // nil, nil when idle
	// Put stores state unconditionally, replacing any prior flow.
	Put(ctx context.Context, state *domain.ConversationState) error
	// CompareAndSwap stores state only if the current revision equals expected.
	CompareAndSwap(ctx context.Context, state *domain.ConversationState, expected string) (bool, error)
	// CompareAndDelete removes the state only if its revision equals expected.
	CompareAndDelete(ctx context.Context, actorID string, expected string) (bool, error)
	Delete(ctx context.Context, actorID string) error
}

// AttemptGuard deduplicates caller-supplied purchase attempt ids.
type AttemptGuard interface {
	// Claim marks key in flight. Returns false if the key already exists.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete stores the terminal record for a claimed key.
	Complete(ctx context.Context, key string, record *domain.AttemptRecord, ttl time.Duration) error
	// Lookup returns the record for key, or nil when unknown.
	Lookup(ctx context.Context, key string) (*domain.AttemptRecord, error)
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgres", "redis").
	Name() string
}
