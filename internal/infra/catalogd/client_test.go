package catalogd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:         srv.URL,
		ProbeTimeout:    200 * time.Millisecond,
		UploadChunkSize: 2,
	})
	require.NoError(t, err)
	return c, srv
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestClient_Probe(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/media/ok.mp3":
			w.WriteHeader(http.StatusOK)
		case "/media/slow.mp3":
			time.Sleep(500 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ctx := context.Background()
	assert.NoError(t, c.Probe(ctx, srv.URL+"/media/ok.mp3"))
	assert.Error(t, c.Probe(ctx, srv.URL+"/media/missing.mp3"))

	// Timeout counts as unreachable.
	start := time.Now()
	assert.Error(t, c.Probe(ctx, srv.URL+"/media/slow.mp3"))
	assert.Less(t, time.Since(start), 450*time.Millisecond)
}

func TestClient_ListTracks(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tracks", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "title": "Alpha", "artist": "Ann", "album": "First", "genre": "rock",
			 "filepath": "alpha.mp3", "duration": 125.5, "bitrate": 320, "extension": "mp3",
			 "cover_path": "covers/alpha.jpg"},
			{"id": 2, "title": "Beta", "filepath": "beta.flac", "duration": 0}
		]`))
	}))

	tracks, err := c.ListTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, int64(1), tracks[0].ID)
	assert.Equal(t, "Alpha", tracks[0].Title)
	assert.Equal(t, "Ann", tracks[0].Artist)
	assert.Equal(t, srv.URL+"/media/alpha.mp3", tracks[0].Source)
	assert.Equal(t, 125500*time.Millisecond, tracks[0].Duration)
	assert.Equal(t, 320, tracks[0].Bitrate)
	assert.Equal(t, "covers/alpha.jpg", tracks[0].Cover)

	assert.Equal(t, time.Duration(0), tracks[1].Duration)
}

func TestClient_ListTracksServerError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "database locked"}`, http.StatusInternalServerError)
	}))

	_, err := c.ListTracks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")
}

func TestClient_DeleteTrack(t *testing.T) {
	var gotPath, gotMethod string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteTrack(context.Background(), 42))
	assert.Equal(t, "/track/42", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestClient_DeleteTrackNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "no such track"}`, http.StatusNotFound)
	}))

	err := c.DeleteTrack(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such track")
}

func TestClient_ScanLibrary(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan", r.URL.Path)
		w.Write([]byte(`{"added": 7, "removed": 1}`))
	}))

	added, err := c.ScanLibrary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, added)
}

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestClient_UploadChunksAndSkipsNonAudio(t *testing.T) {
	var mu sync.Mutex
	var batches []string
	var fileCounts []int

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		mu.Lock()
		batches = append(batches, r.FormValue("batch"))
		fileCounts = append(fileCounts, len(r.MultipartForm.File["files"]))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))

	dir := t.TempDir()
	paths := []string{
		writeTempFile(t, dir, "a.mp3"),
		writeTempFile(t, dir, "b.flac"),
		writeTempFile(t, dir, "c.ogg"),
		writeTempFile(t, dir, "notes.txt"),
	}

	result, err := c.Upload(context.Background(), paths)
	require.NoError(t, err)

	// Chunk size 2: three audio files arrive as 2+1.
	assert.Equal(t, 3, result.Uploaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []int{2, 1}, fileCounts)

	require.Len(t, batches, 2)
	assert.NotEmpty(t, batches[0])
	assert.Equal(t, batches[0], batches[1])
}

func TestClient_UploadContinuesPastFailedChunk(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			http.Error(w, `{"error": "disk full"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	dir := t.TempDir()
	paths := []string{
		writeTempFile(t, dir, "a.mp3"),
		writeTempFile(t, dir, "b.mp3"),
		writeTempFile(t, dir, "c.mp3"),
	}

	result, err := c.Upload(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 2, calls)
}

func TestClient_UploadAllNonAudio(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	dir := t.TempDir()
	result, err := c.Upload(context.Background(), []string{writeTempFile(t, dir, "readme.md")})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 1, result.Skipped)
}

func TestIsAudioFile(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, isAudioFile(writeTempFile(t, dir, "x.MP3")))
	assert.True(t, isAudioFile(writeTempFile(t, dir, "x.flac")))
	assert.False(t, isAudioFile(writeTempFile(t, dir, "x.pdf")))
	assert.False(t, isAudioFile(filepath.Join(dir, "does-not-exist.bin")))
}
