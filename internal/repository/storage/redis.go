package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/memorygame-backend/internal/apperror"
)

const maxUpdateAttempts = 100

type RedisStorage struct {
	Connection *redis.Client

	ttl time.Duration
}

func NewRedisStorage(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisStorage, error) {
	conn := redis.NewClient(opts)

	_, err := conn.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStorageWithClient(conn, ttl), nil
}

func NewRedisStorageWithClient(conn *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		Connection: conn,
		ttl:        ttl,
	}
}

func (that *RedisStorage) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	value, err := that.Connection.Get(ctx, sessionKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}

	return value, nil
}

func (that *RedisStorage) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := that.Connection.Set(ctx, sessionKey(sessionID, key), value, that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}

	return nil
}

// Update - optimistic read-modify-write: the key is WATCHed and the write is retried when another client touched it.
func (that *RedisStorage) Update(ctx context.Context, sessionID, key string, fn UpdateFunc) error {
	redisKey := sessionKey(sessionID, key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}

		if err != nil {
			return fmt.Errorf("failed to get session value: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, next, that.ttl)
			return nil
		})

		return err
	}

	for n_ := 0; n_ < maxUpdateAttempts; n_++ {
		err := that.Connection.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("%w: key %s", apperror.ErrConcurrentUpdate, redisKey)
}

func (that *RedisStorage) Delete(ctx context.Context, sessionID, key string) error {
	if err := that.Connection.Del(ctx, sessionKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session value: %w", err)
	}

	return nil
}

func (that *RedisStorage) Close() error {
	return that.Connection.Close()
}

func sessionKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}
