package store

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"konnect/internal/domain"
)

// DefaultRedisPrefix namespaces every key konnect writes to Redis.
const DefaultRedisPrefix = "konnect:"

// RedisStore is a KVStore over Redis, for devices that share one instance.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps rdb. An empty prefix means DefaultRedisPrefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return v, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

// List scans for keys under prefix and returns them sorted without the
// store's namespace.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, globEscape(s.prefix+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "redis scan %s", prefix)
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ domain.KVStore = (*RedisStore)(nil)
