package rbac

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisSlot is a Slot shared by every replica through one Redis key.
// Redis failures read as a miss and writes are best effort.
type RedisSlot[V any] struct {
	client *redis.Client
	name   string
	ttl    time.Duration
	log    *logrus.Logger
}

type redisSlotEntry[V any] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

// NewRedisSlot creates a slot stored under the Redis key name
func NewRedisSlot[V any](client *redis.Client, name string, ttl time.Duration, log *logrus.Logger) *RedisSlot[V] {
	if log == nil {
		log = logrus.New()
	}

	return &RedisSlot[V]{
		client: client,
		name:   name,
		ttl:    ttl,
		log:    log,
	}
}

// Get returns the shared value when it was stored under key
func (s *RedisSlot[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	data, err := s.client.Get(ctx, s.name).Bytes()
	if err == redis.Nil {
		return zero, false
	} else if err != nil {
		s.log.WithError(err).WithField("slot", s.name).Debug("Redis slot read failed")
		return zero, false
	}

	var entry redisSlotEntry[V]
	if err := json.Unmarshal(data, &entry); err != nil {
		// Drop corrupt data so the next writer starts clean
		s.client.Del(ctx, s.name)
		return zero, false
	}

	if entry.Key != key {
		return zero, false
	}
	return entry.Value, true
}

// Set replaces the shared entry
func (s *RedisSlot[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(redisSlotEntry[V]{Key: key, Value: value})
	if err != nil {
		s.log.WithError(err).WithField("slot", s.name).Warn("Failed to encode Redis slot entry")
		return
	}

	if err := s.client.Set(ctx, s.name, data, s.ttl).Err(); err != nil {
		s.log.WithError(err).WithField("slot", s.name).Debug("Redis slot write failed")
	}
}

// Invalidate removes the shared entry
func (s *RedisSlot[V]) Invalidate(ctx context.Context) {
	if err := s.client.Del(ctx, s.name).Err(); err != nil {
		s.log.WithError(err).WithField("slot", s.name).Debug("Redis slot delete failed")
	}
}
