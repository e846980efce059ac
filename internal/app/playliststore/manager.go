package playliststore

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/domain/playlist"
	"github.com/isak000w/discbox/internal/domain/track"
)

// Errors
var (
	ErrNotFound = errors.New("playlist not found")
)

// Manager holds the in-memory playlist set and writes the whole set
// back through the store on every mutation.
type Manager struct {
	mu    sync.Mutex
	store Store
	lists map[string]*playlist.Playlist
}

// NewManager loads the persisted playlists into a manager.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load playlists")
	}

	lists := make(map[string]*playlist.Playlist, len(loaded))
	for i := range loaded {
		p := loaded[i]
		lists[p.Name] = &p
	}
	return &Manager{store: store, lists: lists}, nil
}

// Create adds an empty playlist. Creating a name that already exists is
// a silent no-op; the existing playlist is untouched.
func (m *Manager) Create(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lists[name]; exists {
		zlog.Debug().Msgf("playlist: %q already exists, skipping create", name)
		return nil
	}
	m.lists[name] = &playlist.Playlist{Name: name}
	return m.persistLocked(ctx)
}

// Rename changes a playlist's name. Renaming onto an existing name is a
// silent no-op so no playlist is ever overwritten.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lists[oldName]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := m.lists[newName]; exists {
		zlog.Debug().Msgf("playlist: %q already exists, skipping rename", newName)
		return nil
	}

	delete(m.lists, oldName)
	p.Name = newName
	m.lists[newName] = p
	return m.persistLocked(ctx)
}

// Delete removes a playlist.
func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lists[name]; !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	delete(m.lists, name)
	return m.persistLocked(ctx)
}

// AppendTrack adds a track to the end of a playlist. Duplicates within
// a playlist are allowed.
func (m *Manager) AppendTrack(ctx context.Context, name string, t track.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lists[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	p.Append(t)
	return m.persistLocked(ctx)
}

// RemoveTrackAt removes the track at the given index from a playlist.
func (m *Manager) RemoveTrackAt(ctx context.Context, name string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lists[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	if index < 0 || index >= len(p.Tracks) {
		return errors.Newf("index %d out of range for playlist %q", index, name)
	}
	p.Tracks = append(p.Tracks[:index], p.Tracks[index+1:]...)
	return m.persistLocked(ctx)
}

// Get returns a copy of the named playlist.
func (m *Manager) Get(name string) (playlist.Playlist, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lists[name]
	if !ok {
		return playlist.Playlist{}, false
	}
	return copyPlaylist(p), true
}

// List returns copies of all playlists sorted by name.
func (m *Manager) List() []playlist.Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]playlist.Playlist, 0, len(m.lists))
	for _, p := range m.lists {
		out = append(out, copyPlaylist(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// persistLocked writes the full playlist set back through the store.
// Must be called with lock held.
func (m *Manager) persistLocked(ctx context.Context) error {
	lists := make([]playlist.Playlist, 0, len(m.lists))
	for _, p := range m.lists {
		lists = append(lists, copyPlaylist(p))
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Name < lists[j].Name })

	if err := m.store.Save(ctx, lists); err != nil {
		return errors.Wrap(err, "save playlists")
	}
	return nil
}

func copyPlaylist(p *playlist.Playlist) playlist.Playlist {
	tracks := make([]track.Descriptor, len(p.Tracks))
	copy(tracks, p.Tracks)
	return playlist.Playlist{Name: p.Name, Tracks: tracks}
}
