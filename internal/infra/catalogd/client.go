// Package catalogd provides a client for the catalog service that owns
// the track database and media files.
package catalogd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/domain/track"
)

// Client is a catalog service client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	chunkSize    int
}

// Config represents catalog client configuration.
type Config struct {
	BaseURL         string
	ProbeTimeout    time.Duration
	UploadChunkSize int
}

// trackResponse mirrors one row of the /api/tracks response.
type trackResponse struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Album     string  `json:"album"`
	Genre     string  `json:"genre"`
	Filepath  string  `json:"filepath"`
	Duration  float64 `json:"duration"` // seconds
	Bitrate   int     `json:"bitrate"`  // kbps
	Extension string  `json:"extension"`
	CoverPath string  `json:"cover_path"`
}

// scanResponse represents the response from POST /scan.
type scanResponse struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// errorResponse represents a JSON error from the catalog service.
type errorResponse struct {
	Error string `json:"error"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid catalog base URL")
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.UploadChunkSize <= 0 {
		cfg.UploadChunkSize = 50
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		probeTimeout: cfg.ProbeTimeout,
		chunkSize:    cfg.UploadChunkSize,
	}, nil
}

// SourceURL returns the media URL for a catalog file path.
func (c *Client) SourceURL(filepath string) string {
	return c.baseURL + "/media/" + url.PathEscape(filepath)
}

// Probe checks that a media source is reachable. A single HEAD request
// with a bounded timeout; any transport error or non-2xx status counts
// as unreachable. No retries: the caller's recovery flow owns what
// happens next.
func (c *Client) Probe(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "probe %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("probe %s: status %d", source, resp.StatusCode)
	}
	return nil
}

// ListTracks returns all catalog tracks in natural order.
func (c *Client) ListTracks(ctx context.Context) ([]track.Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tracks", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("list tracks: status %d: %s", resp.StatusCode, apiError(body))
	}

	var rows []trackResponse
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tracks := make([]track.Descriptor, 0, len(rows))
	for _, r := range rows {
		tracks = append(tracks, track.Descriptor{
			ID:       r.ID,
			Source:   c.SourceURL(r.Filepath),
			Title:    r.Title,
			Artist:   r.Artist,
			Album:    r.Album,
			Genre:    r.Genre,
			Duration: time.Duration(r.Duration * float64(time.Second)),
			Bitrate:  r.Bitrate,
			Cover:    r.CoverPath,
		})
	}
	return tracks, nil
}

// DeleteTrack removes a track from the catalog.
func (c *Client) DeleteTrack(ctx context.Context, id int64) error {
	reqURL := fmt.Sprintf("%s/track/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.Newf("delete track %d: status %d: %s", id, resp.StatusCode, apiError(body))
	}

	zlog.Info().Msgf("catalog: deleted track %d", id)
	return nil
}

// ScanLibrary asks the catalog service to rescan its media directory.
// Returns the number of tracks added.
func (c *Client) ScanLibrary(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan", nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("scan: status %d: %s", resp.StatusCode, apiError(body))
	}

	var result scanResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, errors.Wrap(err, "failed to parse response")
	}

	zlog.Info().Msgf("catalog: scan added %d tracks", result.Added)
	return result.Added, nil
}

func apiError(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
