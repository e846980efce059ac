package playliststore

import (
	"time"

	"github.com/isak000w/discbox/internal/domain/playlist"
	"github.com/isak000w/discbox/internal/domain/track"
)

// Wire representation of the persisted playlist set. Durations are
// stored as whole seconds to match the catalog service.

type playlistRecord struct {
	Name   string        `json:"name"`
	Tracks []trackRecord `json:"tracks"`
}

type trackRecord struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Genre       string `json:"genre,omitempty"`
	DurationSec int64  `json:"duration,omitempty"`
	Bitrate     int    `json:"bitrate,omitempty"`
	Cover       string `json:"cover,omitempty"`
}

func encodePlaylists(lists []playlist.Playlist) []playlistRecord {
	out := make([]playlistRecord, len(lists))
	for i, p := range lists {
		rec := playlistRecord{Name: p.Name, Tracks: make([]trackRecord, len(p.Tracks))}
		for j, t := range p.Tracks {
			rec.Tracks[j] = trackRecord{
				ID:          t.ID,
				Source:      t.Source,
				Title:       t.Title,
				Artist:      t.Artist,
				Album:       t.Album,
				Genre:       t.Genre,
				DurationSec: int64(t.Duration / time.Second),
				Bitrate:     t.Bitrate,
				Cover:       t.Cover,
			}
		}
		out[i] = rec
	}
	return out
}

func decodePlaylists(recs []playlistRecord) []playlist.Playlist {
	out := make([]playlist.Playlist, len(recs))
	for i, rec := range recs {
		p := playlist.Playlist{Name: rec.Name, Tracks: make([]track.Descriptor, len(rec.Tracks))}
		for j, tr := range rec.Tracks {
			p.Tracks[j] = track.Descriptor{
				ID:       tr.ID,
				Source:   tr.Source,
				Title:    tr.Title,
				Artist:   tr.Artist,
				Album:    tr.Album,
				Genre:    tr.Genre,
				Duration: time.Duration(tr.DurationSec) * time.Second,
				Bitrate:  tr.Bitrate,
				Cover:    tr.Cover,
			}
		}
		out[i] = p
	}
	return out
}
