package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/constitution-forecast-service/internal/config"
	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	goredis "github.com/go-redis/redis/v8"
)

const defaultHistoryLimit = 20

// NewClient creates a Redis client from service configuration.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ProfileStore implements domain.ProfileStore. The current profile lives
// under profile:{user}; every submission is appended to the stream
// profile-history:{user}.
type ProfileStore struct {
	client *goredis.Client
}

// NewProfileStore wraps an existing Redis client.
func NewProfileStore(client *goredis.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

func currentKey(userID string) string { return "profile:" + userID }
func historyKey(userID string) string { return "profile-history:" + userID }

// SaveProfile upserts the current profile and appends the record to the
// user's history in a single transaction.
func (s *ProfileStore) SaveProfile(ctx context.Context, rec domain.ProfileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, currentKey(rec.UserID), data, 0)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: historyKey(rec.UserID),
			Values: map[string]interface{}{
				"event_id": rec.EventID,
				"data":     string(data),
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save profile %s: %w", rec.UserID, err)
	}
	return nil
}

// CurrentProfile returns the latest profile or domain.ErrProfileNotFound.
func (s *ProfileStore) CurrentProfile(ctx context.Context, userID string) (domain.ProfileRecord, error) {
	data, err := s.client.Get(ctx, currentKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.ProfileRecord{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("get profile %s: %w", userID, err)
	}

	var rec domain.ProfileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return rec, nil
}

// ProfileHistory returns up to limit records, newest first. A user with no
// submissions gets an empty slice.
func (s *ProfileStore) ProfileHistory(ctx context.Context, userID string, limit int) ([]domain.ProfileRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	msgs, err := s.client.XRevRangeN(ctx, historyKey(userID), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read profile history %s: %w", userID, err)
	}

	out := make([]domain.ProfileRecord, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			return nil, fmt.Errorf("profile history %s: entry %s has no data", userID, msg.ID)
		}
		var rec domain.ProfileRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode profile history %s entry %s: %w", userID, msg.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// CheckReadiness pings Redis.
func (s *ProfileStore) CheckReadiness(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *ProfileStore) Close() error {
	return s.client.Close()
}
