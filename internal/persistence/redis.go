package persistence

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/gravitas-games/craftd/internal/inventory"
)

// RedisStore keeps each snapshot as one JSON string value.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership of it;
// Close does not close the client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(owner inventory.OwnerID, category inventory.Category) string {
	return s.prefix + recordKey(owner, category)
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, owner inventory.OwnerID, category inventory.Category) (inventory.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(owner, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return inventory.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return decode(data)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, owner inventory.OwnerID, category inventory.Category, snap inventory.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(owner, category), data, 0).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
