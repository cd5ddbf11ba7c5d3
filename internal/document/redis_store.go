package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &RedisStore{rdb: rdb}
}

func redisKey(key string) string {
	return fmt.Sprintf("document:%s", key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Document, error) {
	var d Document
	err := s.rdb.Get(ctx, redisKey(key)).Scan(&d)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Put(ctx context.Context, doc *Document) error {
	if !ValidKey(doc.Key) {
		return ErrInvalidKey
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := s.rdb.Set(ctx, redisKey(doc.Key), doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}
