// Package history provides the bounded recently-played exclusion window.
package history

// DefaultSize is the number of recently played sources retained.
const DefaultSize = 20

// Window keeps the most recently played source locators, most recent
// first. It is the exclusion input of the shuffle sampler. The window is
// created empty at session start and is never persisted.
type Window struct {
	sources []string
	size    int
}

// New creates a window retaining up to size entries. A non-positive size
// falls back to DefaultSize.
func New(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{
		sources: make([]string, 0, size),
		size:    size,
	}
}

// Record notes a successful playback start. An already-present source is
// removed before re-insertion at the front, then the window is truncated.
// O(n) with n bounded by the window size.
func (w *Window) Record(source string) {
	for i, s := range w.sources {
		if s == source {
			w.sources = append(w.sources[:i], w.sources[i+1:]...)
			break
		}
	}

	w.sources = append([]string{source}, w.sources...)
	if len(w.sources) > w.size {
		w.sources = w.sources[:w.size]
	}
}

// Excludes reports whether the source was recently played.
func (w *Window) Excludes(source string) bool {
	for _, s := range w.sources {
		if s == source {
			return true
		}
	}
	return false
}

// Sources returns a copy of the window, most recent first.
func (w *Window) Sources() []string {
	out := make([]string, len(w.sources))
	copy(out, w.sources)
	return out
}

// Len returns the number of retained sources.
func (w *Window) Len() int {
	return len(w.sources)
}
