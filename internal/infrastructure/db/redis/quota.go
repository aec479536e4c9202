package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// quotaTTL keeps a day-keyed counter around for one day. The key embeds the
// UTC date, so a stale record never collides with today's count — it just
// ages out.
const quotaTTL = 24 * time.Hour

// AnonymousQuotaStore tracks daily anonymous consumption in Redis.
// Key format: anonquota:<fingerprint>:<yyyy-mm-dd>
type AnonymousQuotaStore struct {
	client *redis.Client
}

// NewAnonymousQuotaStore creates an AnonymousQuotaStore wrapping the given
// Redis client.
func NewAnonymousQuotaStore(client *redis.Client) *AnonymousQuotaStore {
	return &AnonymousQuotaStore{client: client}
}

// Count returns today's consumption for the fingerprint. A missing key reads
// as zero.
func (s *AnonymousQuotaStore) Count(ctx context.Context, fingerprint, date string) (int, error) {
	n, err := s.client.Get(ctx, s.key(fingerprint, date)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("anonymous quota read: %w", err)
	}
	return n, nil
}

// Increment atomically adds one to today's counter and returns the new
// value. The TTL is (re)set on first write of each day's key.
func (s *AnonymousQuotaStore) Increment(ctx context.Context, fingerprint, date string) (int, error) {
	key := s.key(fingerprint, date)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("anonymous quota increment: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, quotaTTL).Err(); err != nil {
			return int(n), fmt.Errorf("anonymous quota expire: %w", err)
		}
	}
	return int(n), nil
}

func (s *AnonymousQuotaStore) key(fingerprint, date string) string {
	return fmt.Sprintf("anonquota:%s:%s", fingerprint, date)
}
