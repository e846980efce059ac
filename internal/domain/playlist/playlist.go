// Package playlist provides the named playlist entity.
package playlist

import (
	"time"

	"github.com/isak000w/discbox/internal/domain/track"
)

// Playlist is a named, ordered collection of track descriptors.
// The name is the unique key in the persisted mapping. Playlist order is
// independent of playback order.
type Playlist struct {
	Name   string
	Tracks []track.Descriptor
}

// Append adds a track at the end of the playlist.
func (p *Playlist) Append(t track.Descriptor) {
	p.Tracks = append(p.Tracks, t)
}

// TrackIDs returns all track IDs in playlist order.
func (p *Playlist) TrackIDs() []int64 {
	ids := make([]int64, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the summed duration of all tracks. Tracks whose
// duration is unknown at add time contribute zero.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}
