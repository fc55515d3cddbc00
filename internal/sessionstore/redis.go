package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type redisKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionRecordKey(name string) string
}

type redisStore struct {
	kv   redisKV
	name string
	ttl  time.Duration
}

// NewRedis returns a store that keeps the session record under a namespaced
// redis key. A zero ttl keeps the record until logout deletes it.
func NewRedis(kv redisKV, name string, ttl time.Duration) (Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if name == "" {
		return nil, fmt.Errorf("record name is required")
	}
	return &redisStore{kv: kv, name: name, ttl: ttl}, nil
}

func (s *redisStore) Load(ctx context.Context) (*Record, error) {
	raw, err := s.kv.Get(ctx, s.kv.SessionRecordKey(s.name))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &record, nil
}

func (s *redisStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	return s.kv.Set(ctx, s.kv.SessionRecordKey(s.name), string(blob), s.ttl)
}

func (s *redisStore) Delete(ctx context.Context) error {
	return s.kv.Del(ctx, s.kv.SessionRecordKey(s.name))
}
