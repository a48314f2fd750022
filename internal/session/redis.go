// Package session хранит состояние диалога пользователя в Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Store сохраняет значение T в JSON под ключом session:<id> с TTL.
// TTL продлевается при каждом сохранении.
type Store[T any] struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore[T any](client *redis.Client, ttl time.Duration) *Store[T] {
	return &Store[T]{client: client, ttl: ttl}
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Load возвращает сохранённое значение; found=false, если сессии нет или она истекла.
func (s *Store[T]) Load(ctx context.Context, id int64) (value T, found bool, err error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("redis get session %d: %w", id, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		// повреждённая сессия равносильна отсутствующей: диалог начнётся заново
		return value, false, nil
	}
	return value, true, nil
}

func (s *Store[T]) Save(ctx context.Context, id int64, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal session %d: %w", id, err)
	}
	if err := s.client.Set(ctx, key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %d: %w", id, err)
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id int64) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis del session %d: %w", id, err)
	}
	return nil
}
