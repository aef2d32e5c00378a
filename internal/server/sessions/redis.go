package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON value under session:<id> and a
// pointer to the user's current session under user-session:<user id>. Both
// keys expire with the session.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
	gen generator
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, gen: defaultGenerator()}
}

// DialRedis opens a client and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID int64) string {
	return "user-session:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Create(ctx context.Context, userID int64) (*Session, error) {
	sess, err := s.gen.newSession(userID, s.ttl)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	prev, err := s.rdb.Get(ctx, userKey(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("redis error: %w", err)
	default:
		if err := s.rdb.Del(ctx, sessionKey(prev)).Err(); err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}

	if err := s.rdb.Set(ctx, sessionKey(sess.ID), string(data), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if err := s.rdb.Set(ctx, userKey(userID), sess.ID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
