// Package session implements the playback session: the state machine
// that ties the catalog view, manual queue, auto-queue and recovery
// together and drives the media player.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/app/autoqueue"
	"github.com/isak000w/discbox/internal/app/library"
	"github.com/isak000w/discbox/internal/app/recovery"
	"github.com/isak000w/discbox/internal/domain/history"
	"github.com/isak000w/discbox/internal/domain/queue"
	"github.com/isak000w/discbox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack      = errors.New("no track playing")
	ErrUnknownTrack = errors.New("track not in catalog")
	ErrBadIndex     = errors.New("queue index out of range")
)

// Config holds session configuration.
type Config struct {
	RestartThreshold time.Duration // Previous restarts the track past this position
	ProgressInterval time.Duration // How often progress events are emitted
}

// DefaultConfig returns the configuration used when a field is zero.
func DefaultConfig() Config {
	return Config{
		RestartThreshold: 2 * time.Second,
		ProgressInterval: time.Second,
	}
}

// Session is the playback state machine. All public methods are safe for
// concurrent use; internal state is guarded by a single mutex and media
// callbacks re-enter through the same lock.
type Session struct {
	mu sync.Mutex

	player  Player
	view    *library.View
	manual  *queue.Manual
	hist    *history.Window
	builder *autoqueue.Builder
	recover *recovery.Handler

	// Queue state
	auto    []track.Descriptor
	current track.Descriptor
	// cursor is the reference track for auto-queue ordering: the current
	// track while playing, or the last attempted track during a failure
	// chain (so the chain walks forward from the failed track).
	cursor track.Descriptor

	// Playback state
	paused  bool
	shuffle bool
	loop    bool
	rate    float64

	// playSeq increments on every track change so async callbacks and
	// the progress ticker can detect staleness.
	playSeq        uint64
	progressCancel func()

	config  Config
	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a session around the given collaborators.
func New(player Player, view *library.View, manual *queue.Manual, hist *history.Window, builder *autoqueue.Builder, rec *recovery.Handler, config Config) *Session {
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = DefaultConfig().RestartThreshold
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = DefaultConfig().ProgressInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		player:  player,
		view:    view,
		manual:  manual,
		hist:    hist,
		builder: builder,
		recover: rec,
		rate:    1.0,
		config:  config,
		eventCh: make(chan Event, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
	// Every view mutation happens under s.mu (the session's own facade
	// methods, or recovery while an attempt holds the lock), so the
	// rebuild callback runs with it held.
	view.OnChange(s.rebuildLocked)
	return s
}

// Events returns the event channel.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

// Play starts playback of the given track. If its media is unreachable
// the recovery flow runs and the session advances past it.
func (s *Session) Play(ctx context.Context, t track.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playAttemptLocked(ctx, t, recovery.NewChain())
}

// PlayByID looks the track up in the catalog view and plays it.
func (s *Session) PlayByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.view.TrackByID(id)
	if !ok {
		return ErrUnknownTrack
	}
	return s.playAttemptLocked(ctx, t, recovery.NewChain())
}

// TogglePlayPause flips the paused state. While nothing is playing it
// is a no-op.
func (s *Session) TogglePlayPause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return nil
	}

	paused, err := s.player.Paused()
	if err != nil {
		return err
	}
	if paused {
		if err := s.player.Play(); err != nil {
			return err
		}
	} else {
		if err := s.player.Pause(); err != nil {
			return err
		}
	}
	s.setPausedLocked(!paused)
	return nil
}

// Next advances to the next track: manual queue head first, auto-queue
// otherwise.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.advanceLocked(ctx, recovery.NewChain())
}

// Previous restarts the current track when it is past the restart
// threshold; otherwise it plays the track shown directly above the
// current one in the catalog view.
func (s *Session) Previous(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return ErrNoTrack
	}

	pos, err := s.player.Position()
	if err == nil && pos > s.config.RestartThreshold.Seconds() {
		return s.player.Seek(0)
	}

	pred, ok := s.view.Predecessor(s.current.Source)
	if !ok {
		// Top of the list, restart instead
		return s.player.Seek(0)
	}
	return s.playAttemptLocked(ctx, pred, recovery.NewChain())
}

// SeekTo moves the playhead to the given position in seconds, clamped
// to the track bounds. It is a no-op until the duration is known.
func (s *Session) SeekTo(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return ErrNoTrack
	}
	dur, err := s.player.Duration()
	if err != nil {
		return err
	}
	if dur <= 0 {
		return nil
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > dur {
		seconds = dur
	}
	return s.player.Seek(seconds)
}

// SetRate changes the playback rate. Out-of-range values are clamped.
func (s *Session) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 4.0 {
		rate = 4.0
	}
	s.rate = rate
	if s.current.IsZero() {
		return nil
	}
	return s.player.SetRate(rate)
}

// Rate returns the current playback rate.
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// ToggleLoop flips single-track looping and returns the new state.
func (s *Session) ToggleLoop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loop = !s.loop
	if !s.current.IsZero() {
		if err := s.player.SetLoop(s.loop); err != nil {
			return s.loop, err
		}
	}
	return s.loop, nil
}

// Looping reports whether single-track loop is active.
func (s *Session) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// ToggleShuffle flips shuffle mode, rebuilds the auto-queue and returns
// the new state.
func (s *Session) ToggleShuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shuffle = !s.shuffle
	s.rebuildLocked()
	return s.shuffle
}

// Shuffling reports whether shuffle mode is active.
func (s *Session) Shuffling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffle
}

// Enqueue appends a track to the manual queue.
func (s *Session) Enqueue(t track.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual.Enqueue(t)
	s.sendEventLocked(Event{Type: EvtQueueRebuilt})
}

// EnqueueByID looks the track up in the catalog view and enqueues it.
func (s *Session) EnqueueByID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.view.TrackByID(id)
	if !ok {
		return ErrUnknownTrack
	}
	s.manual.Enqueue(t)
	s.sendEventLocked(Event{Type: EvtQueueRebuilt})
	return nil
}

// PlayQueuedAt removes the manual-queue entry at the given index and
// plays it immediately.
func (s *Session) PlayQueuedAt(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.manual.RemoveAt(index)
	if !ok {
		return ErrBadIndex
	}
	s.sendEventLocked(Event{Type: EvtQueueRebuilt})
	return s.playAttemptLocked(ctx, t, recovery.NewChain())
}

// RemoveQueuedAt removes the manual-queue entry at the given index.
func (s *Session) RemoveQueuedAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manual.RemoveAt(index); !ok {
		return ErrBadIndex
	}
	s.sendEventLocked(Event{Type: EvtQueueRebuilt})
	return nil
}

// SetCatalog replaces the catalog contents. The view change callback
// rebuilds the auto-queue.
func (s *Session) SetCatalog(tracks []track.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.SetTracks(tracks)
}

// Filter applies a catalog filter query. The view change callback
// rebuilds the auto-queue.
func (s *Session) Filter(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Filter(query)
}

// SortBy cycles the sort mode of the given column and returns the mode
// now in effect. The view change callback rebuilds the auto-queue.
func (s *Session) SortBy(col library.Column) library.SortMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.view.Sort(col)
}

// Current returns the playing track, if any.
func (s *Session) Current() (track.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return track.Descriptor{}, false
	}
	return s.current, true
}

// Paused reports whether playback is paused. False when idle.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.current.IsZero() && s.paused
}

// UpNext returns the upcoming tracks: the manual queue followed by the
// auto-queue.
func (s *Session) UpNext() []track.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	manual := s.manual.Tracks()
	out := make([]track.Descriptor, 0, len(manual)+len(s.auto))
	out = append(out, manual...)
	out = append(out, s.auto...)
	return out
}

// History returns the recently played sources, newest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Sources()
}

// Stop halts playback and clears the current track.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Close shuts the session down and releases the player.
func (s *Session) Close() error {
	s.mu.Lock()
	s.cancel()
	s.stopProgressLocked()
	s.current = track.Descriptor{}
	s.mu.Unlock()

	return s.player.Close()
}

// OnEnded implements MediaEvents. A naturally finished track advances
// the session with a fresh recovery chain.
func (s *Session) OnEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return
	}

	ended := s.current
	zlog.Debug().Msgf("session: track ended: %s", ended.Title)
	s.sendEventLocked(Event{Type: EvtTrackEnded, Track: ended})

	if err := s.advanceLocked(s.ctx, recovery.NewChain()); err != nil {
		zlog.Warn().Err(err).Msg("session: advance after track end failed")
	}
	// Nothing left to play: the finished track is no longer current
	if s.current.Source == ended.Source {
		if err := s.stopLocked(); err != nil {
			zlog.Warn().Err(err).Msg("session: stop after track end failed")
		}
	}
}

// OnMediaError implements MediaEvents. Playback errors mid-track skip
// to the next candidate without prompting for deletion.
func (s *Session) OnMediaError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return
	}

	failed := s.current
	zlog.Warn().Err(err).Msgf("session: media error on %s", failed.Source)
	s.sendEventLocked(Event{Type: EvtError, Track: failed, Err: err})

	if aerr := s.advanceLocked(s.ctx, recovery.NewChain()); aerr != nil {
		zlog.Warn().Err(aerr).Msg("session: advance after media error failed")
	}
	if s.current.Source == failed.Source {
		if serr := s.stopLocked(); serr != nil {
			zlog.Warn().Err(serr).Msg("session: stop after media error failed")
		}
	}
}

// OnPauseChanged implements MediaEvents. It reconciles externally
// observed pause flips (mpv property changes) with session state.
func (s *Session) OnPauseChanged(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() || paused == s.paused {
		return
	}
	s.setPausedLocked(paused)
}

// playAttemptLocked probes the track and either commits playback or
// runs the recovery flow and advances. Must be called with lock held.
func (s *Session) playAttemptLocked(ctx context.Context, t track.Descriptor, chain *recovery.Chain) error {
	for {
		if chain.Attempted(t.Source) {
			// Every candidate in this chain already failed
			zlog.Warn().Msgf("session: recovery chain exhausted at %s, stopping", t.Source)
			return s.stopLocked()
		}
		chain.MarkAttempted(t.Source)

		err := s.recover.Probe(ctx, t)
		if err == nil {
			return s.commitPlayLocked(t)
		}

		zlog.Warn().Err(err).Msgf("session: media unreachable: %s", t.Source)
		s.cursor = t
		s.sendEventLocked(Event{Type: EvtTrackMissing, Track: t, Err: err})

		if s.recover.HandleMissing(ctx, t, chain) {
			s.sendEventLocked(Event{Type: EvtTrackRemoved, Track: t})
		}

		next, ok := s.nextCandidateLocked()
		if !ok {
			return s.stopLocked()
		}
		t = next
	}
}

// advanceLocked plays the next candidate. Advancing with nothing
// available is a no-op: the current track keeps playing, or the session
// stays idle. Must be called with lock held.
func (s *Session) advanceLocked(ctx context.Context, chain *recovery.Chain) error {
	next, ok := s.nextCandidateLocked()
	if !ok {
		return nil
	}
	return s.playAttemptLocked(ctx, next, chain)
}

// nextCandidateLocked pops the next track to play: manual queue head
// first, then the auto-queue front, rebuilding the auto-queue when it
// has run dry. Must be called with lock held.
func (s *Session) nextCandidateLocked() (track.Descriptor, bool) {
	if t, ok := s.manual.DequeueFront(); ok {
		s.sendEventLocked(Event{Type: EvtQueueRebuilt})
		return t, true
	}

	if len(s.auto) == 0 {
		s.rebuildLocked()
	}
	if len(s.auto) == 0 {
		return track.Descriptor{}, false
	}

	t := s.auto[0]
	s.auto = s.auto[1:]
	return t, true
}

// commitPlayLocked loads and starts the probed track. Must be called
// with lock held.
func (s *Session) commitPlayLocked(t track.Descriptor) error {
	if err := s.player.Load(t.Source); err != nil {
		return err
	}
	if err := s.player.SetLoop(s.loop); err != nil {
		zlog.Warn().Err(err).Msg("session: set loop failed")
	}
	if err := s.player.SetRate(s.rate); err != nil {
		zlog.Warn().Err(err).Msg("session: set rate failed")
	}
	if err := s.player.Play(); err != nil {
		return err
	}

	// Only a successful start enters the history window
	s.hist.Record(t.Source)
	s.current = t
	s.cursor = t
	s.paused = false
	s.playSeq++

	zlog.Info().Msgf("session: playing %s - %s", t.Artist, t.Title)
	s.sendEventLocked(Event{Type: EvtTrackStarted, Track: t})

	s.rebuildLocked()
	s.startProgressLocked()
	return nil
}

func (s *Session) stopLocked() error {
	s.stopProgressLocked()
	s.current = track.Descriptor{}
	s.paused = false
	s.playSeq++
	return s.player.Stop()
}

func (s *Session) setPausedLocked(paused bool) {
	s.paused = paused
	if paused {
		s.stopProgressLocked()
	} else {
		s.startProgressLocked()
	}
	s.sendEventLocked(Event{Type: EvtStateChanged, Track: s.current, Paused: paused})
}

// rebuildLocked recomputes the auto-queue from the current view order.
// Must be called with lock held.
func (s *Session) rebuildLocked() {
	ref := s.current
	if ref.IsZero() {
		ref = s.cursor
	}
	order := s.view.VisibleTracks()
	s.auto = s.builder.Rebuild(order, ref, s.shuffle, s.hist)
	s.sendEventLocked(Event{Type: EvtQueueRebuilt})
}

// startProgressLocked (re)starts the progress ticker for the current
// playSeq. Must be called with lock held.
func (s *Session) startProgressLocked() {
	s.stopProgressLocked()

	ctx, cancel := context.WithCancel(s.ctx)
	s.progressCancel = cancel
	seq := s.playSeq

	go func() {
		ticker := time.NewTicker(s.config.ProgressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				// Skip if the track changed since this ticker started
				if s.playSeq != seq || s.current.IsZero() || s.paused {
					s.mu.Unlock()
					continue
				}
				t := s.current
				s.mu.Unlock()

				pos, perr := s.player.Position()
				dur, derr := s.player.Duration()
				if perr != nil || derr != nil {
					continue
				}

				s.mu.Lock()
				if s.playSeq == seq {
					s.sendEventLocked(Event{
						Type:     EvtProgress,
						Track:    t,
						Position: pos,
						Duration: dur,
					})
				}
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Session) stopProgressLocked() {
	if s.progressCancel != nil {
		s.progressCancel()
		s.progressCancel = nil
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (s *Session) sendEventLocked(e Event) {
	select {
	case s.eventCh <- e:
		// Successfully sent
	case <-s.ctx.Done():
		// Session closed, don't send
	default:
		// Channel full, drop event
	}
}
