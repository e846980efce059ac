// Package playliststore persists named playlists and manages their
// lifecycle. Backends rewrite the full playlist set on every mutation;
// the sets involved are small and full rewrites keep the storage format
// trivial to inspect and recover.
package playliststore

import (
	"context"

	"github.com/isak000w/discbox/internal/domain/playlist"
)

// Store is a playlist persistence backend.
type Store interface {
	// Load returns all persisted playlists. A missing backing record is
	// not an error; it returns an empty slice.
	Load(ctx context.Context) ([]playlist.Playlist, error)
	// Save replaces the entire persisted set.
	Save(ctx context.Context, lists []playlist.Playlist) error
}
