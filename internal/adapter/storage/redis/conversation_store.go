package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Each conversation is a hash with the fields "rev" and "state".
var (
	casScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'rev') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[2], 'state', ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

	cadScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'rev') ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)
)

// ConversationStore implements ports.ConversationStore. Compare-and-swap
// runs as a Lua script so the revision check and the write are atomic.
type ConversationStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewConversationStore creates a store whose entries expire after ttl
// without input.
func NewConversationStore(client *goredis.Client, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, prefix: "conversation:", ttl: ttl}
}

func (s *ConversationStore) key(actorID string) string {
	return s.prefix + actorID
}

// stamp assigns a fresh revision and returns the encoded state.
func stamp(state *domain.ConversationState) ([]byte, error) {
	state.Revision = uuid.NewString()
	state.UpdatedAt = time.Now().UTC()
	return json.Marshal(state)
}

func (s *ConversationStore) Get(ctx context.Context, actorID string) (*domain.ConversationState, error) {
	raw, err := s.client.HGet(ctx, s.key(actorID), "state").Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis conversation get: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &state, nil
}

func (s *ConversationStore) Put(ctx context.Context, state *domain.ConversationState) error {
	next := state.Clone()
	payload, err := stamp(next)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	key := s.key(state.ActorID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "rev", next.Revision, "state", payload)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis conversation put: %w", err)
	}

	state.Revision = next.Revision
	state.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *ConversationStore) CompareAndSwap(ctx context.Context, state *domain.ConversationState, expected string) (bool, error) {
	next := state.Clone()
	payload, err := stamp(next)
	if err != nil {
		return false, fmt.Errorf("encode conversation: %w", err)
	}

	n, err := casScript.Run(ctx, s.client, []string{s.key(state.ActorID)},
		expected, next.Revision, payload, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis conversation cas: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	state.Revision = next.Revision
	state.UpdatedAt = next.UpdatedAt
	return true, nil
}

func (s *ConversationStore) CompareAndDelete(ctx context.Context, actorID string, expected string) (bool, error) {
	n, err := cadScript.Run(ctx, s.client, []string{s.key(actorID)}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("redis conversation cad: %w", err)
	}
	return n == 1, nil
}

func (s *ConversationStore) Delete(ctx context.Context, actorID string) error {
	if err := s.client.Del(ctx, s.key(actorID)).Err(); err != nil {
		return fmt.Errorf("redis conversation delete: %w", err)
	}
	return nil
}
