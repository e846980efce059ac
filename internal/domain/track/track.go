// Package track provides the track descriptor entity.
package track

import (
	"fmt"
	"strings"
	"time"
)

// Descriptor identifies a playable unit in the catalog.
// The Source may go stale (file removed on disk) without the descriptor
// being removed; missing-media recovery resolves that at play time.
type Descriptor struct {
	ID       int64         // stable catalog identifier
	Source   string        // resolvable media location
	Title    string        // display title
	Artist   string        // display artist
	Album    string        // album name
	Genre    string        // genre tag
	Duration time.Duration // track length (0 if unknown)
	Bitrate  int           // kbps (0 if unknown)
	Cover    string        // optional cover art location
}

// IsZero reports whether the descriptor is the zero value.
func (d Descriptor) IsZero() bool {
	return d.ID == 0 && d.Source == ""
}

// FormatDuration renders the duration as m:ss, the catalog's display form.
func (d Descriptor) FormatDuration() string {
	secs := int(d.Duration.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// DisplayText returns the row's full searchable text, lowercased.
// The filter engine matches substrings against this, mirroring a match
// against every visible cell of the row.
func (d Descriptor) DisplayText() string {
	parts := []string{d.Title, d.Artist, d.Album, d.Genre, d.FormatDuration()}
	return strings.ToLower(strings.Join(parts, " "))
}
