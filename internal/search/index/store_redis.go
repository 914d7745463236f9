package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// RedisStore implements Store with one Redis hash per physical slot, keyed
// by prisoner number and holding the JSON snapshot.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis creates a Redis-backed index store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func slotKey(slot models.SyncIndex) string {
	return "prisoner-index:" + strings.ToLower(slot.String())
}

func (s *RedisStore) Get(ctx context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error) {
	raw, err := s.client.HGet(ctx, slotKey(slot), prisonerNumber.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s from slot %s: %w", prisonerNumber, slot, err)
	}

	var prisoner models.Prisoner
	if err := json.Unmarshal([]byte(raw), &prisoner); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s in slot %s: %w", prisonerNumber, slot, err)
	}
	return &prisoner, nil
}

func (s *RedisStore) Put(ctx context.Context, slot models.SyncIndex, prisoner *models.Prisoner) error {
	if err := prisoner.Validate(); err != nil {
		return err
	}

	encoded, err := json.Marshal(prisoner)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", prisoner.PrisonerNumber, err)
	}
	if err := s.client.HSet(ctx, slotKey(slot), prisoner.PrisonerNumber.String(), encoded).Err(); err != nil {
		return fmt.Errorf("put %s into slot %s: %w", prisoner.PrisonerNumber, slot, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) error {
	if err := s.client.HDel(ctx, slotKey(slot), prisonerNumber.String()).Err(); err != nil {
		return fmt.Errorf("delete %s from slot %s: %w", prisonerNumber, slot, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, slot models.SyncIndex) error {
	if err := s.client.Del(ctx, slotKey(slot)).Err(); err != nil {
		return fmt.Errorf("clear slot %s: %w", slot, err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context, slot models.SyncIndex) (int64, error) {
	count, err := s.client.HLen(ctx, slotKey(slot)).Result()
	if err != nil {
		return 0, fmt.Errorf("count slot %s: %w", slot, err)
	}
	return count, nil
}
