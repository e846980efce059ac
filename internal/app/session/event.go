package session

import (
	"github.com/isak000w/discbox/internal/domain/track"
)

// EventType identifies what a session Event reports.
type EventType int

const (
	// EvtTrackStarted reports that playback of Event.Track began.
	EvtTrackStarted EventType = iota
	// EvtTrackEnded reports that Event.Track finished naturally.
	EvtTrackEnded
	// EvtStateChanged reports a play/pause flip; Event.Paused holds the
	// new state.
	EvtStateChanged
	// EvtTrackMissing reports that Event.Track's media could not be
	// reached.
	EvtTrackMissing
	// EvtTrackRemoved reports that Event.Track was purged from the
	// session after a confirmed missing-media deletion.
	EvtTrackRemoved
	// EvtQueueRebuilt reports that the automatic queue was recomputed.
	EvtQueueRebuilt
	// EvtProgress carries a periodic position snapshot while playing.
	EvtProgress
	// EvtError carries a non-fatal playback error.
	EvtError
)

func (t EventType) String() string {
	switch t {
	case EvtTrackStarted:
		return "TRACK_STARTED"
	case EvtTrackEnded:
		return "TRACK_ENDED"
	case EvtStateChanged:
		return "STATE_CHANGED"
	case EvtTrackMissing:
		return "TRACK_MISSING"
	case EvtTrackRemoved:
		return "TRACK_REMOVED"
	case EvtQueueRebuilt:
		return "QUEUE_REBUILT"
	case EvtProgress:
		return "PROGRESS"
	case EvtError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a session notification delivered on the Events channel.
type Event struct {
	Type     EventType
	Track    track.Descriptor
	Paused   bool
	Position float64
	Duration float64
	Err      error
}
