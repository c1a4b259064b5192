package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tagSetTTL outlives every cached entry so a tag set never expires before
// the keys it indexes.
const tagSetTTL = TTLStatic + time.Hour

// RedisStore keeps entries as plain string keys and each tag as a set of the
// keys stored under it.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return fmt.Sprintf("%s:cache:%s", s.prefix, k) }

func (s *RedisStore) tagKey(tag string) string { return fmt.Sprintf("%s:tag:%s", s.prefix, tag) }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}
	full := s.key(key)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, full, value, ttl)
		for _, tag := range tags {
			tk := s.tagKey(tag)
			p.SAdd(ctx, tk, full)
			p.Expire(ctx, tk, tagSetTTL)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Revalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tk := s.tagKey(tag)
		keys, err := s.rdb.SMembers(ctx, tk).Result()
		if err != nil {
			return fmt.Errorf("revalidate %s: %w", tag, err)
		}
		keys = append(keys, tk)
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("revalidate %s: %w", tag, err)
		}
	}
	return nil
}
