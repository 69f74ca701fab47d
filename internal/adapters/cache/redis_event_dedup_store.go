package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventDedupKeyPrefix = "invoicing:webhook:event:"

// RedisEventDedupStore remembers processed gateway event ids until they expire.
type RedisEventDedupStore struct {
	client *redis.Client
}

func NewRedisEventDedupStore(client *redis.Client) *RedisEventDedupStore {
	return &RedisEventDedupStore{client: client}
}

func (s *RedisEventDedupStore) IsDuplicate(ctx context.Context, eventID string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, eventDedupKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisEventDedupStore) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.Set(ctx, eventDedupKey(eventID), eventType, ttl).Err()
}

func eventDedupKey(eventID string) string {
	return eventDedupKeyPrefix + eventID
}
