package session

// Player is the media-playback primitive the session drives. The
// production implementation talks to an mpv subprocess; tests substitute
// an in-memory fake.
//
// Positions and durations are in seconds. Duration returns 0 until the
// source's metadata has loaded.
type Player interface {
	Load(source string) error
	Play() error
	Pause() error
	Stop() error
	Paused() (bool, error)
	Position() (float64, error)
	Duration() (float64, error)
	Seek(seconds float64) error
	SetRate(rate float64) error
	SetLoop(loop bool) error
	Close() error
}

// MediaEvents is implemented by the session and invoked by the media
// primitive's event pump. Callbacks may arrive on any goroutine.
type MediaEvents interface {
	// OnEnded fires when the current source finishes naturally. It is
	// suppressed by the primitive itself while loop is active.
	OnEnded()
	// OnMediaError fires when the primitive fails to play the assigned
	// source (decode failure, vanished file).
	OnMediaError(err error)
	// OnPauseChanged fires when the primitive's real paused state flips,
	// whether user-initiated or not.
	OnPauseChanged(paused bool)
}
