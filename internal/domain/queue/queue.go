// Package queue provides the user-curated manual playback queue.
package queue

import "github.com/isak000w/discbox/internal/domain/track"

// Manual is the explicit user queue. Strictly FIFO: tracks play in the
// order they were enqueued, and it is always consulted before the
// auto-queue when advancing.
type Manual struct {
	tracks []track.Descriptor
}

// NewManual creates an empty manual queue.
func NewManual() *Manual {
	return &Manual{
		tracks: make([]track.Descriptor, 0),
	}
}

// Enqueue appends a track to the back of the queue.
func (m *Manual) Enqueue(t track.Descriptor) {
	m.tracks = append(m.tracks, t)
}

// DequeueFront removes and returns the head of the queue.
// The second return is false if the queue is empty.
func (m *Manual) DequeueFront() (track.Descriptor, bool) {
	if len(m.tracks) == 0 {
		return track.Descriptor{}, false
	}
	head := m.tracks[0]
	m.tracks = m.tracks[1:]
	return head, true
}

// RemoveAt removes and returns the track at the given index. Used when a
// queued item is clicked to play immediately out of order.
func (m *Manual) RemoveAt(index int) (track.Descriptor, bool) {
	if index < 0 || index >= len(m.tracks) {
		return track.Descriptor{}, false
	}
	t := m.tracks[index]
	m.tracks = append(m.tracks[:index], m.tracks[index+1:]...)
	return t, true
}

// RemoveByID removes every queued occurrence of the track with the given
// catalog ID. Recovery calls this when a track is deleted from the
// catalog so the queue stays consistent.
func (m *Manual) RemoveByID(id int64) int {
	removed := 0
	kept := m.tracks[:0]
	for _, t := range m.tracks {
		if t.ID == id {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.tracks = kept
	return removed
}

// Tracks returns a copy of the queued tracks in play order.
func (m *Manual) Tracks() []track.Descriptor {
	out := make([]track.Descriptor, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// Len returns the number of queued tracks.
func (m *Manual) Len() int {
	return len(m.tracks)
}

// IsEmpty reports whether the queue has no tracks.
func (m *Manual) IsEmpty() bool {
	return len(m.tracks) == 0
}
