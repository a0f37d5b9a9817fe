package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// RedisStore keeps each session's history in a redis list
// ("<prefix>:history:<id>") and its summary as a JSON string
// ("<prefix>:summary:<id>"). A positive TTL is refreshed on every write.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "concierge"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL and returns a store over a new client.
// The connection is established lazily; use Ping to verify reachability.
func DialRedis(rawURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 1
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	return NewRedisStore(redis.NewClient(opts), prefix, ttl), nil
}

func (s *RedisStore) historyKey(id string) string {
	return s.prefix + ":history:" + id
}

func (s *RedisStore) summaryKey(id string) string {
	return s.prefix + ":summary:" + id
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...protocol.Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
		}
		values = append(values, data)
	}

	key := s.historyKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
	}
	return nil
}

func (s *RedisStore) Turns(ctx context.Context, sessionID string) ([]protocol.Turn, error) {
	return s.lrange(ctx, sessionID, 0, -1)
}

func (s *RedisStore) Recent(ctx context.Context, sessionID string, n int) ([]protocol.Turn, error) {
	if n <= 0 {
		return []protocol.Turn{}, nil
	}
	return s.lrange(ctx, sessionID, int64(-n), -1)
}

func (s *RedisStore) lrange(ctx context.Context, sessionID string, start, stop int64) ([]protocol.Turn, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(sessionID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}

	turns := make([]protocol.Turn, 0, len(raw))
	for _, item := range raw {
		var t protocol.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) LoadSummary(ctx context.Context, sessionID string) (Summary, error) {
	data, err := s.client.Get(ctx, s.summaryKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Summary{}, nil
		}
		return Summary{}, fmt.Errorf("%w: %s: %w", ErrLoadFailed, sessionID, err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
	}
	return summary, nil
}

func (s *RedisStore) SaveSummary(ctx context.Context, sessionID string, summary Summary) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	if err := s.client.Set(ctx, s.summaryKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, sessionID, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
