package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blockforge/api/internal/notify"
)

// RedisStore implements Adapter on top of Redis. Records are stored as JSON
// strings under prefix+key with no expiry.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	log      *zap.Logger
	notifier notify.Notifier
}

func NewRedisStore(redisURL, prefix string, log *zap.Logger, notifier notify.Notifier) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix, log, notifier), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, log *zap.Logger, notifier notify.Notifier) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RedisStore{client: client, prefix: prefix, log: log, notifier: notifier}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Save(ctx context.Context, key string, value any) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Error("marshal record", zap.String("key", key), zap.Error(err))
		s.notifier.Notify(notify.LevelError, msgSaveFailed)
		return false
	}
	if err := s.client.Set(ctx, s.key(key), payload, 0).Err(); err != nil {
		s.log.Error("save record", zap.String("key", key), zap.Error(err))
		if strings.Contains(err.Error(), "OOM") {
			s.notifier.Notify(notify.LevelError, msgStorageFull)
		} else {
			s.notifier.Notify(notify.LevelError, msgSaveFailed)
		}
		return false
	}
	return true
}

func (s *RedisStore) Load(ctx context.Context, key string, dest any) bool {
	payload, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.log.Error("load record", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		// Corrupt records read as absent rather than crashing the caller.
		s.log.Error("corrupt record, treating as absent", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) Remove(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.log.Error("remove record", zap.String("key", key), zap.Error(err))
	}
}

// ListKeys returns every key under the namespace with the prefix stripped.
func (s *RedisStore) ListKeys(ctx context.Context) []string {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		s.log.Error("list keys", zap.Error(err))
	}
	return keys
}

func (s *RedisStore) ClearAll(ctx context.Context) {
	for _, key := range s.ListKeys(ctx) {
		s.Remove(ctx, key)
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
