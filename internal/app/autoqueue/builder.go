// Package autoqueue derives the upcoming-track list from the catalog
// order, the current track and the shuffle mode.
package autoqueue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/isak000w/discbox/internal/domain/history"
	"github.com/isak000w/discbox/internal/domain/track"
)

// DefaultLookahead is the number of upcoming tracks derived per rebuild.
const DefaultLookahead = 5

// Builder computes auto-queue snapshots. Snapshots are recomputed
// wholesale on every trigger (current-track change, shuffle toggle,
// catalog order mutation), never patched incrementally, so they can
// never go stale.
type Builder struct {
	lookahead int
	rng       *rand.Rand
}

// New creates a builder. A non-positive lookahead falls back to
// DefaultLookahead.
func New(lookahead int) *Builder {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Builder{
		lookahead: lookahead,
		rng:       rand.New(rand.NewSource(trueRandSeed())),
	}
}

func trueRandSeed() int64 {
	var seed int64
	if err := binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed); err != nil {
		return time.Now().UnixNano()
	}
	return seed
}

// Rebuild computes a fresh snapshot of up to lookahead tracks.
//
// Sequential mode walks the catalog order from the current track's
// successor, wrapping to the start and stopping before the current track
// itself. With no current track it takes the head of the order, treating
// "no track yet" as "about to play from the top".
//
// Shuffle mode samples uniformly without replacement, preferring tracks
// whose source is not in the history window; if that exclusion leaves
// fewer candidates than requested it falls back to the full order.
func (b *Builder) Rebuild(order []track.Descriptor, current track.Descriptor, shuffle bool, hist *history.Window) []track.Descriptor {
	if len(order) == 0 {
		return []track.Descriptor{}
	}

	if shuffle {
		return b.sample(order, hist)
	}

	idx := -1
	if !current.IsZero() {
		for i, t := range order {
			if t.Source == current.Source {
				idx = i
				break
			}
		}
	}

	if idx < 0 {
		n := min(b.lookahead, len(order))
		out := make([]track.Descriptor, n)
		copy(out, order[:n])
		return out
	}

	out := make([]track.Descriptor, 0, b.lookahead)
	for i := 1; i < len(order) && len(out) < b.lookahead; i++ {
		out = append(out, order[(idx+i)%len(order)])
	}
	return out
}

func (b *Builder) sample(order []track.Descriptor, hist *history.Window) []track.Descriptor {
	pool := make([]track.Descriptor, 0, len(order))
	if hist != nil {
		for _, t := range order {
			if !hist.Excludes(t.Source) {
				pool = append(pool, t)
			}
		}
	}
	// Exclusion would starve the request: sample from everything.
	if len(pool) < min(b.lookahead, len(order)) {
		pool = append(pool[:0:0], order...)
	}

	b.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	n := min(b.lookahead, len(pool))
	return pool[:n]
}
