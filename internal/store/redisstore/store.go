// Package redisstore keeps the ephemeral presence state in Redis so
// typing indicators survive server restarts and are shared across
// replicas.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const typingWindow = 3 * time.Second

type Store struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func typingKey(consultationID string) string {
	return "typing:" + consultationID
}

// SetTyping refreshes the user's typing timestamp. Entries expire
// lazily: readers filter by age instead of relying on a TTL per member.
func (s *Store) SetTyping(ctx context.Context, consultationID, userID string) error {
	now := float64(time.Now().UnixMilli())
	if err := s.client.ZAdd(ctx, typingKey(consultationID), redis.Z{Score: now, Member: userID}).Err(); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	// Cap the key's lifetime so abandoned consultations don't leak.
	s.client.Expire(ctx, typingKey(consultationID), time.Minute)
	return nil
}

func (s *Store) ClearTyping(ctx context.Context, consultationID, userID string) error {
	if err := s.client.ZRem(ctx, typingKey(consultationID), userID).Err(); err != nil {
		return fmt.Errorf("clear typing: %w", err)
	}
	return nil
}

// ActiveTypers returns the users whose last typing signal is within the
// staleness window, pruning everything older.
func (s *Store) ActiveTypers(ctx context.Context, consultationID string) ([]string, error) {
	cutoff := time.Now().Add(-typingWindow).UnixMilli()
	key := typingKey(consultationID)

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, fmt.Errorf("prune typing: %w", err)
	}
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list typing: %w", err)
	}
	return members, nil
}
