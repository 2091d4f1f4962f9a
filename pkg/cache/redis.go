// pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"learnhub/internal/models"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

const defaultTTL = 24 * time.Hour

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: client,
		ttl:    defaultTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func quizStateKey(userID uint, slug string) string {
	return fmt.Sprintf("quiz:%s:user:%d", slug, userID)
}

func playbackKey(userID, courseID uint) string {
	return fmt.Sprintf("playback:%d:user:%d", courseID, userID)
}

func leaderboardKey(slug string) string {
	return "leaderboard:" + slug
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, key, data, c.ttl).Err(), "set %s", key)
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", key)
	}
	return errors.Wrapf(json.Unmarshal(data, dest), "unmarshal %s", key)
}

// SetQuizState snapshots a learner's quiz state.
func (c *RedisCache) SetQuizState(ctx context.Context, userID uint, slug string, state interface{}) error {
	return c.setJSON(ctx, quizStateKey(userID, slug), state)
}

func (c *RedisCache) GetQuizState(ctx context.Context, userID uint, slug string, dest interface{}) error {
	return c.getJSON(ctx, quizStateKey(userID, slug), dest)
}

func (c *RedisCache) DeleteQuizState(ctx context.Context, userID uint, slug string) error {
	return errors.Wrap(c.client.Del(ctx, quizStateKey(userID, slug)).Err(), "delete quiz state")
}

// SetPlaybackPosition remembers where a learner stopped watching a course video.
func (c *RedisCache) SetPlaybackPosition(ctx context.Context, userID, courseID uint, seconds float64) error {
	return errors.Wrap(
		c.client.Set(ctx, playbackKey(userID, courseID), seconds, c.ttl).Err(),
		"set playback position",
	)
}

func (c *RedisCache) GetPlaybackPosition(ctx context.Context, userID, courseID uint) (float64, error) {
	pos, err := c.client.Get(ctx, playbackKey(userID, courseID)).Float64()
	if err == redis.Nil {
		return 0, ErrMiss
	}
	return pos, errors.Wrap(err, "get playback position")
}

// RecordBestScore keeps the best percentage per user for a quiz.
func (c *RedisCache) RecordBestScore(ctx context.Context, slug, username string, percentage int) error {
	return c.MergeScores(ctx, slug, []models.LeaderboardEntry{{Username: username, Percentage: percentage}})
}

// MergeScores adds entries to a quiz board, keeping the higher score for users
// already on it.
func (c *RedisCache) MergeScores(ctx context.Context, slug string, entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	key := leaderboardKey(slug)

	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: float64(e.Percentage), Member: e.Username}
	}

	pipe := c.client.Pipeline()
	pipe.ZAddArgs(ctx, key, redis.ZAddArgs{
		GT:      true,
		Members: members,
	})
	pipe.Expire(ctx, key, c.ttl)

	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "record best score")
}

// HasLeaderboard reports whether a board for the quiz is cached. A missing
// board has expired or was never built.
func (c *RedisCache) HasLeaderboard(ctx context.Context, slug string) (bool, error) {
	n, err := c.client.Exists(ctx, leaderboardKey(slug)).Result()
	if err != nil {
		return false, errors.Wrap(err, "check leaderboard")
	}
	return n > 0, nil
}

func (c *RedisCache) GetLeaderboard(ctx context.Context, slug string, limit int64) ([]models.LeaderboardEntry, error) {
	// Get entries sorted by score (descending)
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey(slug), 0, limit-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get leaderboard")
	}

	entries := make([]models.LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = models.LeaderboardEntry{
			Username:   z.Member.(string),
			Percentage: int(z.Score),
		}
	}
	return entries, nil
}
