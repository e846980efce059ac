package playliststore

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/isak000w/discbox/internal/domain/playlist"
)

const defaultRedisKey = "discbox:playlists"

// RedisStore persists the playlist set as a single JSON value. Good for
// setups where the player runs on several machines against one catalog.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a redis-backed store. An empty key selects the
// default.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) ([]playlist.Playlist, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []playlist.Playlist{}, nil
		}
		return nil, errors.Wrapf(err, "redis get %s", s.key)
	}

	var recs []playlistRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.key)
	}
	return decodePlaylists(recs), nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, lists []playlist.Playlist) error {
	data, err := json.Marshal(encodePlaylists(lists))
	if err != nil {
		return errors.Wrap(err, "marshal playlists")
	}

	// No expiry: playlists are durable state, not a cache.
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", s.key)
	}
	return nil
}
