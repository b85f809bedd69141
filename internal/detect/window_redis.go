package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindowStore implements sliding windows on sorted sets so several
// detector instances share state. Members are scored by event time; counting
// is a prune followed by ZCard in one pipeline round trip.
type RedisWindowStore struct {
	client *redis.Client
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Add(ctx context.Context, key string, ts time.Time, window time.Duration) (int64, error) {
	windowKey := "attest:window:" + key
	cutoff := ts.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	// Member includes a uuid so two events in the same microsecond both count.
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(ts.UnixNano()),
		Member: fmt.Sprintf("%d:%s", ts.UnixNano(), uuid.NewString()),
	})
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", cutoff))
	card := pipe.ZCard(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("window add: %w", err)
	}
	return card.Val(), nil
}

func (s *RedisWindowStore) TryLatch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "attest:latch:"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("latch: %w", err)
	}
	return ok, nil
}

func (s *RedisWindowStore) Unlatch(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, "attest:latch:"+key).Err(); err != nil {
		return fmt.Errorf("unlatch: %w", err)
	}
	return nil
}
