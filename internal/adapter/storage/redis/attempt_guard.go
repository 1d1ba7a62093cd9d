package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// AttemptGuard implements ports.AttemptGuard. A claim is a SET NX of an
// in-flight record that Complete later overwrites with the outcome.
type AttemptGuard struct {
	client *goredis.Client
	prefix string
}

func NewAttemptGuard(client *goredis.Client) *AttemptGuard {
	return &AttemptGuard{client: client, prefix: "attempt:"}
}

func (g *AttemptGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(domain.AttemptRecord{Status: domain.AttemptInFlight})
	if err != nil {
		return false, err
	}

	result, err := g.client.SetArgs(ctx, g.prefix+key, payload, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis attempt claim: %w", err)
	}
	return result == "OK", nil
}

func (g *AttemptGuard) Complete(ctx context.Context, key string, record *domain.AttemptRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := g.client.Set(ctx, g.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis attempt complete: %w", err)
	}
	return nil
}

func (g *AttemptGuard) Lookup(ctx context.Context, key string) (*domain.AttemptRecord, error) {
	raw, err := g.client.Get(ctx, g.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis attempt lookup: %w", err)
	}

	var record domain.AttemptRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &record, nil
}
