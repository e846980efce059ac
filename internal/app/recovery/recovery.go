// Package recovery resolves tracks whose media source is no longer
// reachable: verify before committing playback, offer deletion once per
// failure chain, and keep advancing so the user is never left stalled.
package recovery

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/app/library"
	"github.com/isak000w/discbox/internal/domain/queue"
	"github.com/isak000w/discbox/internal/domain/track"
)

// Prober issues the lightweight existence check against a media source.
// A timed-out probe is indistinguishable from an unreachable one.
type Prober interface {
	Probe(ctx context.Context, source string) error
}

// Deleter removes a track from the backing catalog permanently.
type Deleter interface {
	DeleteTrack(ctx context.Context, id int64) error
}

// Confirmer asks the user whether a missing track should be deleted from
// the catalog. It runs at most once per failure chain.
type Confirmer func(t track.Descriptor) bool

// Chain tracks one advance chain's recovery state. A chain begins with a
// play request or an ended-event advance and covers every recursive
// advance caused by consecutive unreachable tracks.
type Chain struct {
	prompted  bool
	attempted map[string]bool
}

// NewChain starts a fresh failure chain.
func NewChain() *Chain {
	return &Chain{attempted: make(map[string]bool)}
}

// Attempted reports whether this chain already tried the source. The
// session stops advancing on the first repeat, bounding the chain by
// catalog size even when every track is unreachable.
func (c *Chain) Attempted(source string) bool {
	return c.attempted[source]
}

// MarkAttempted records a failed attempt at the source.
func (c *Chain) MarkAttempted(source string) {
	c.attempted[source] = true
}

// Handler performs the recovery steps around an unreachable track.
type Handler struct {
	prober  Prober
	deleter Deleter
	confirm Confirmer
	view    *library.View
	manual  *queue.Manual
}

// NewHandler creates a recovery handler.
func NewHandler(prober Prober, deleter Deleter, confirm Confirmer, view *library.View, manual *queue.Manual) *Handler {
	return &Handler{
		prober:  prober,
		deleter: deleter,
		confirm: confirm,
		view:    view,
		manual:  manual,
	}
}

// Probe verifies the track's source is reachable.
func (h *Handler) Probe(ctx context.Context, t track.Descriptor) error {
	return h.prober.Probe(ctx, t.Source)
}

// HandleMissing runs the recovery protocol for an unreachable track and
// reports whether the track was deleted from the catalog.
//
// Only the first failure in a chain prompts; every later failure in the
// same chain advances silently. On a confirmed deletion the row is
// removed from the view, every manual-queue occurrence is purged, and
// the backend delete is issued. The in-memory removal is optimistic: a
// failed backend delete is logged and reported, not rolled back.
func (h *Handler) HandleMissing(ctx context.Context, t track.Descriptor, chain *Chain) bool {
	chain.MarkAttempted(t.Source)

	if chain.prompted {
		return false
	}
	chain.prompted = true

	if h.confirm == nil || !h.confirm(t) {
		zlog.Info().Msgf("recovery: %q unreachable, deletion declined", t.Title)
		return false
	}

	h.view.RemoveTrack(t.ID)
	h.manual.RemoveByID(t.ID)

	if err := h.deleter.DeleteTrack(ctx, t.ID); err != nil {
		// Row already gone from the view; accepted as a benign
		// inconsistency until the next reload.
		zlog.Error().Err(err).Msgf("recovery: failed to delete track %d from catalog", t.ID)
	} else {
		zlog.Info().Msgf("recovery: deleted missing track %q (id %d)", t.Title, t.ID)
	}

	return true
}
