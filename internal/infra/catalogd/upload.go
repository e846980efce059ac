package catalogd

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Extensions accepted without sniffing.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".opus": true,
	".wma":  true,
}

// UploadResult summarizes an upload batch.
type UploadResult struct {
	Batch    string // batch identifier sent with every chunk
	Uploaded int    // files accepted by the catalog service
	Skipped  int    // non-audio files filtered out client-side
	Failed   int    // files in chunks the service rejected
}

// Upload sends the given files to the catalog in bounded chunks.
// Non-audio files are skipped up front. A failed chunk is logged and
// counted but does not stop the remaining chunks.
func (c *Client) Upload(ctx context.Context, paths []string) (UploadResult, error) {
	result := UploadResult{Batch: uuid.NewString()}

	audio := make([]string, 0, len(paths))
	for _, p := range paths {
		if isAudioFile(p) {
			audio = append(audio, p)
			continue
		}
		zlog.Debug().Msgf("catalog: skipping non-audio file: %s", p)
		result.Skipped++
	}
	if len(audio) == 0 {
		return result, nil
	}

	for start := 0; start < len(audio); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		chunk := audio[start:end]

		if err := c.uploadChunk(ctx, result.Batch, chunk); err != nil {
			zlog.Warn().Err(err).Msgf("catalog: upload chunk %d-%d failed", start, end)
			result.Failed += len(chunk)
			continue
		}
		result.Uploaded += len(chunk)
	}

	zlog.Info().Msgf("catalog: upload batch %s: %d uploaded, %d skipped, %d failed",
		result.Batch, result.Uploaded, result.Skipped, result.Failed)
	return result, nil
}

func (c *Client) uploadChunk(ctx context.Context, batch string, paths []string) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeChunk(form, batch, paths)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Newf("upload: status %d: %s", resp.StatusCode, apiError(body))
	}
	return nil
}

func writeChunk(form *multipart.Writer, batch string, paths []string) error {
	if err := form.WriteField("batch", batch); err != nil {
		return errors.Wrap(err, "write batch field")
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return errors.Wrapf(err, "open %s", p)
		}
		part, err := form.CreateFormFile("files", filepath.Base(p))
		if err != nil {
			f.Close()
			return errors.Wrap(err, "create form file")
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return errors.Wrapf(err, "copy %s", p)
		}
		f.Close()
	}
	return nil
}

// isAudioFile reports whether the path looks like audio. Known
// extensions pass outright; anything else is sniffed for an audio
// metadata header.
func isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if audioExtensions[ext] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = tag.ReadFrom(f)
	return err == nil
}
