package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *log.Logger
}

// RedisStore shares the preview cache across client processes. Cache
// failures degrade to a miss; they never fail the caller.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{
		client: client,
		ttl:    config.TTL,
		logger: config.Logger,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func previewKey(jobID int64) string {
	return fmt.Sprintf("redact:preview:%d", jobID)
}

func (s *RedisStore) Get(ctx context.Context, jobID int64) (Entry, bool) {
	raw, err := s.client.Get(ctx, previewKey(jobID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logf("redis cache get failed job_id=%d err=%v", jobID, err)
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logf("redis cache decode failed job_id=%d err=%v", jobID, err)
		return Entry{}, false
	}
	return entry, true
}

func (s *RedisStore) Set(ctx context.Context, jobID int64, entry Entry) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(s.ttl)

	encoded, err := json.Marshal(entry)
	if err != nil {
		s.logf("redis cache encode failed job_id=%d err=%v", jobID, err)
		return
	}
	if err := s.client.Set(ctx, previewKey(jobID), encoded, s.ttl).Err(); err != nil {
		s.logf("redis cache set failed job_id=%d err=%v", jobID, err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, jobID int64) {
	if err := s.client.Del(ctx, previewKey(jobID)).Err(); err != nil {
		s.logf("redis cache delete failed job_id=%d err=%v", jobID, err)
	}
}

func (s *RedisStore) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
