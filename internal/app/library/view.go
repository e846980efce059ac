// Package library provides the catalog view: the ordered, filtered set of
// tracks eligible for playback, with column sorting and text filtering.
package library

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/isak000w/discbox/internal/domain/track"
)

// Column identifies a sortable table column.
type Column int

const (
	ColumnTitle Column = iota
	ColumnArtist
	ColumnAlbum
	ColumnGenre
	ColumnDuration
	ColumnBitrate
)

// String returns the column's display name.
func (c Column) String() string {
	switch c {
	case ColumnTitle:
		return "title"
	case ColumnArtist:
		return "artist"
	case ColumnAlbum:
		return "album"
	case ColumnGenre:
		return "genre"
	case ColumnDuration:
		return "duration"
	case ColumnBitrate:
		return "bitrate"
	default:
		return "unknown"
	}
}

// numeric reports whether the column sorts by parsed numeric value.
func (c Column) numeric() bool {
	return c == ColumnDuration || c == ColumnBitrate
}

// SortMode is the per-column sort state.
type SortMode int

const (
	SortNatural SortMode = iota // original catalog order
	SortAscending
	SortDescending
)

// cycle returns the next mode when the column header is clicked again.
func (m SortMode) cycle() SortMode {
	return (m + 1) % 3
}

// String returns the mode's display name.
func (m SortMode) String() string {
	switch m {
	case SortAscending:
		return "ascending"
	case SortDescending:
		return "descending"
	default:
		return "natural"
	}
}

// FilterMode selects the text matching strategy.
type FilterMode string

const (
	FilterPlain FilterMode = "plain" // case-insensitive substring
	FilterFuzzy FilterMode = "fuzzy" // normalized-fold fuzzy match
)

// row is one catalog entry plus its view state. Filtered-out rows are
// hidden, never removed; the natural index restores original order after
// a sort cycle completes.
type row struct {
	track   track.Descriptor
	natural int
	hidden  bool
}

// View owns the catalog order. It mutates on every filter change or sort
// toggle; the queue engine only ever reads VisibleTracks snapshots.
type View struct {
	rows       []row
	query      string
	filterMode FilterMode

	sortColumn Column
	sortMode   SortMode

	onChange func()
}

// NewView creates an empty view.
func NewView(mode FilterMode) *View {
	if mode == "" {
		mode = FilterPlain
	}
	return &View{filterMode: mode}
}

// OnChange registers a callback invoked after every mutation of the
// visible order. The auto-queue rebuild hangs off this.
func (v *View) OnChange(fn func()) {
	v.onChange = fn
}

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange()
	}
}

// SetTracks replaces the catalog contents, resetting sort state to the
// natural order and re-applying the active filter query.
func (v *View) SetTracks(tracks []track.Descriptor) {
	v.rows = make([]row, len(tracks))
	for i, t := range tracks {
		v.rows[i] = row{track: t, natural: i}
	}
	v.sortMode = SortNatural
	v.applyFilter()
	v.changed()
}

// Filter hides rows whose display text does not match the query.
// An empty query unhides everything.
func (v *View) Filter(query string) {
	v.query = strings.TrimSpace(query)
	v.applyFilter()
	v.changed()
}

// Query returns the active filter query.
func (v *View) Query() string {
	return v.query
}

func (v *View) applyFilter() {
	q := strings.ToLower(v.query)
	for i := range v.rows {
		v.rows[i].hidden = q != "" && !v.matches(v.rows[i].track, q)
	}
}

func (v *View) matches(t track.Descriptor, q string) bool {
	if v.filterMode == FilterFuzzy {
		return fuzzy.MatchNormalizedFold(q, t.DisplayText())
	}
	return strings.Contains(t.DisplayText(), q)
}

// Sort advances the column's three-state cycle: natural, ascending,
// descending, back to natural. Sorting a different column restarts the
// cycle at ascending. The sort is stable for equal keys.
func (v *View) Sort(col Column) SortMode {
	if v.sortColumn == col {
		v.sortMode = v.sortMode.cycle()
	} else {
		v.sortColumn = col
		v.sortMode = SortAscending
	}
	v.applySort()
	v.changed()
	return v.sortMode
}

func (v *View) applySort() {
	if v.sortMode == SortNatural {
		sort.SliceStable(v.rows, func(i, j int) bool {
			return v.rows[i].natural < v.rows[j].natural
		})
		return
	}

	col := v.sortColumn
	asc := v.sortMode == SortAscending

	sort.SliceStable(v.rows, func(i, j int) bool {
		a := cellText(v.rows[i].track, col)
		b := cellText(v.rows[j].track, col)
		if asc {
			return cellLess(a, b, col.numeric())
		}
		return cellLess(b, a, col.numeric())
	})
}

// cellText renders the column's cell content for comparison, matching
// what the table displays.
func cellText(t track.Descriptor, col Column) string {
	switch col {
	case ColumnTitle:
		return t.Title
	case ColumnArtist:
		return t.Artist
	case ColumnAlbum:
		return t.Album
	case ColumnGenre:
		return t.Genre
	case ColumnDuration:
		return t.FormatDuration()
	case ColumnBitrate:
		return strconv.Itoa(t.Bitrate)
	default:
		return ""
	}
}

// cellLess compares two cell strings. Numeric columns parse the leading
// numeric value, treating a mm:ss colon as a decimal separator and
// defaulting to 0 on parse failure; text columns compare case-insensitively.
func cellLess(a, b string, numeric bool) bool {
	if numeric {
		return parseLeadingNumber(a) < parseLeadingNumber(b)
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

func parseLeadingNumber(s string) float64 {
	s = strings.Replace(strings.TrimSpace(s), ":", ".", 1)

	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		if c == '-' && end == 0 {
			end++
			continue
		}
		break
	}

	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

// VisibleTracks returns a snapshot of the visible rows in current order.
func (v *View) VisibleTracks() []track.Descriptor {
	out := make([]track.Descriptor, 0, len(v.rows))
	for _, r := range v.rows {
		if !r.hidden {
			out = append(out, r.track)
		}
	}
	return out
}

// TrackByID returns the catalog entry with the given ID, visible or not.
func (v *View) TrackByID(id int64) (track.Descriptor, bool) {
	for _, r := range v.rows {
		if r.track.ID == id {
			return r.track, true
		}
	}
	return track.Descriptor{}, false
}

// RemoveTrack removes a row entirely. This is the "hide row for id X"
// operation recovery requests after a catalog deletion.
func (v *View) RemoveTrack(id int64) bool {
	for i, r := range v.rows {
		if r.track.ID == id {
			v.rows = append(v.rows[:i], v.rows[i+1:]...)
			v.changed()
			return true
		}
	}
	return false
}

// Predecessor returns the visible row immediately before the track with
// the given source, in current view order. Used by "previous", which
// always follows catalog order regardless of shuffle.
func (v *View) Predecessor(source string) (track.Descriptor, bool) {
	visible := v.VisibleTracks()
	for i, t := range visible {
		if t.Source == source {
			if i == 0 {
				return track.Descriptor{}, false
			}
			return visible[i-1], true
		}
	}
	return track.Descriptor{}, false
}

// Len returns the total number of rows, hidden included.
func (v *View) Len() int {
	return len(v.rows)
}
