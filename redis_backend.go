package geobase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on plain Redis string keys.
// Conditional writes use WATCH/MULTI/EXEC, so PutIfMatch is atomic.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend stores every key as namespace+key.
// An empty namespace shares the keyspace with other users of the database.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{
		client:    client,
		namespace: namespace,
	}
}

func (b *RedisBackend) redisKey(key string) string {
	return b.namespace + key
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *RedisBackend) Put(ctx context.Context, key string, data []byte) error {
	return b.client.Set(ctx, b.redisKey(key), data, 0).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	n, err := b.client.Del(ctx, b.redisKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return data, contentETag(data), nil
}

func (b *RedisBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	rk := b.redisKey(key)

	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		if expectedETag != "" {
			current, err := tx.Get(ctx, rk).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if actual := contentETag(current); actual != expectedETag {
				return WithContext(ErrConflict, map[string]interface{}{
					"key":      key,
					"expected": expectedETag,
					"actual":   actual,
				})
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, data, 0)
			return nil
		})
		return err
	}, rk)

	if errors.Is(err, redis.TxFailedErr) {
		return "", WithContext(ErrConflict, map[string]interface{}{
			"key":      key,
			"expected": expectedETag,
		})
	}
	if err != nil {
		return "", err
	}
	return contentETag(data), nil
}

// List scans the namespace for keys under prefix
func (b *RedisBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	pattern := escapeRedisGlob(b.redisKey(prefix)) + "*"
	iter := b.client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), b.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	// SCAN may return a key more than once
	sort.Strings(keys)
	return dedupeSorted(keys), nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func escapeRedisGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func dedupeSorted(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	out := keys[:1]
	for _, k := range keys[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
