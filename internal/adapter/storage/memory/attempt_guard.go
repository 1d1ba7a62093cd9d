package memory

import (
	"context"
	"sync"
	"time"

	"vending-kernel/internal/core/domain"
)

type expiringRecord struct {
	record    domain.AttemptRecord
	expiresAt time.Time
}

// AttemptGuard implements ports.AttemptGuard.
type AttemptGuard struct {
	mu      sync.Mutex
	records map[string]expiringRecord
	now     func() time.Time
}

func NewAttemptGuard() *AttemptGuard {
	return &AttemptGuard{records: make(map[string]expiringRecord), now: time.Now}
}

func (g *AttemptGuard) live(key string) (expiringRecord, bool) {
	rec, ok := g.records[key]
	if ok && !g.now().Before(rec.expiresAt) {
		delete(g.records, key)
		return expiringRecord{}, false
	}
	return rec, ok
}

func (g *AttemptGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.live(key); ok {
		return false, nil
	}
	g.records[key] = expiringRecord{
		record:    domain.AttemptRecord{Status: domain.AttemptInFlight},
		expiresAt: g.now().Add(ttl),
	}
	return true, nil
}

func (g *AttemptGuard) Complete(_ context.Context, key string, record *domain.AttemptRecord, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[key] = expiringRecord{record: *record, expiresAt: g.now().Add(ttl)}
	return nil
}

func (g *AttemptGuard) Lookup(_ context.Context, key string) (*domain.AttemptRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.live(key)
	if !ok {
		return nil, nil
	}
	out := rec.record
	return &out, nil
}
