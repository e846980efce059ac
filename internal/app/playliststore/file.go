package playliststore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/isak000w/discbox/internal/domain/playlist"
)

// FileStore persists playlists to a single JSON file. Writes go through
// a temporary file and rename so a crash mid-write never truncates the
// existing set.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path. Parent
// directories are created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) ([]playlist.Playlist, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []playlist.Playlist{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", s.path)
	}

	var recs []playlistRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.path)
	}
	return decodePlaylists(recs), nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, lists []playlist.Playlist) error {
	data, err := json.MarshalIndent(encodePlaylists(lists), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal playlists")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".playlists-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "close %s", tmpName)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "rename to %s", s.path)
	}
	return nil
}
