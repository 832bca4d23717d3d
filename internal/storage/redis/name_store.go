package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/fleethours/internal/storage"
	"github.com/redis/go-redis/v9"
)

type nameStore struct {
	client *redis.Client
}

func namesKey(kind storage.NameKind) string {
	return fmt.Sprintf("fleethours:names:%s", kind)
}

// SetName stores the display name of an id
func (s *nameStore) SetName(ctx context.Context, kind storage.NameKind, id, name string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return s.client.HSet(ctx, namesKey(kind), id, name).Err()
}

// DeleteName removes a display name
func (s *nameStore) DeleteName(ctx context.Context, kind storage.NameKind, id string) error {
	removed, err := s.client.HDel(ctx, namesKey(kind), id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetNames looks up many names in one round trip
func (s *nameStore) GetNames(ctx context.Context, kind storage.NameKind, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	values, err := s.client.HMGet(ctx, namesKey(kind), ids...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		// Missing fields come back as nil
		if name, ok := v.(string); ok {
			names[ids[i]] = name
		}
	}
	return names, nil
}

// ListNames returns every name of a kind
func (s *nameStore) ListNames(ctx context.Context, kind storage.NameKind) (map[string]string, error) {
	return s.client.HGetAll(ctx, namesKey(kind)).Result()
}
