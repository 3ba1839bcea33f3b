package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"FXPulse/internal/domain/models"
	applogger "FXPulse/pkg/logger"
)

// RedisAlertStore persists armed alerts in Redis so they survive restarts.
// Each alert lives at {prefix}:alert:{id} with the id set {prefix}:alerts
// as the index.
type RedisAlertStore struct {
	rdb    *redis.Client
	prefix string
	l      *applogger.Logger
}

// NewRedisAlertStore creates a Redis-backed alert store.
func NewRedisAlertStore(rdb *redis.Client, prefix string, l *applogger.Logger) *RedisAlertStore {
	if prefix == "" {
		prefix = "fxpulse"
	}
	return &RedisAlertStore{rdb: rdb, prefix: prefix, l: l}
}

func (s *RedisAlertStore) key(id int64) string {
	return fmt.Sprintf("%s:alert:%d", s.prefix, id)
}

func (s *RedisAlertStore) indexKey() string {
	return s.prefix + ":alerts"
}

// LoadArmed returns all persisted alerts that are still armed. Entries
// whose key expired or fails to decode are skipped, not fatal.
func (s *RedisAlertStore) LoadArmed(ctx context.Context) ([]models.Alert, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load alert index: %w", err)
	}

	out := make([]models.Alert, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, s.prefix+":alert:"+id).Bytes()
		if err == redis.Nil {
			s.rdb.SRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load alert %s: %w", id, err)
		}
		var a models.Alert
		if err := json.Unmarshal(raw, &a); err != nil {
			s.l.Warn("skipping undecodable alert",
				applogger.String("id", id),
				applogger.Error(err))
			continue
		}
		if a.State != models.AlertArmed {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Save writes one alert and registers it in the index.
func (s *RedisAlertStore) Save(ctx context.Context, a models.Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert %d: %w", a.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(a.ID), raw, 0)
	pipe.SAdd(ctx, s.indexKey(), a.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save alert %d: %w", a.ID, err)
	}
	return nil
}

// Delete removes one alert and its index entry.
func (s *RedisAlertStore) Delete(ctx context.Context, id int64) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete alert %d: %w", id, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisAlertStore) Close() error {
	return s.rdb.Close()
}
