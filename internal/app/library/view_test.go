package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/isak000w/discbox/internal/domain/track"
)

func catalog() []track.Descriptor {
	return []track.Descriptor{
		{ID: 1, Source: "/media/a.mp3", Title: "Alpha", Artist: "Zeta Band", Duration: 3*time.Minute + 45*time.Second, Bitrate: 320},
		{ID: 2, Source: "/media/b.mp3", Title: "beta", Artist: "Acme", Duration: 2 * time.Minute, Bitrate: 128},
		{ID: 3, Source: "/media/c.mp3", Title: "Gamma", Artist: "Acme", Duration: 10*time.Minute + 5*time.Second, Bitrate: 192},
		{ID: 4, Source: "/media/d.mp3", Title: "delta", Artist: "Middle", Duration: 2*time.Minute + 30*time.Second, Bitrate: 256},
	}
}

func visibleIDs(v *View) []int64 {
	tracks := v.VisibleTracks()
	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func TestView_FilterHidesWithoutRemoving(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	v.Filter("acme")
	assert.Equal(t, []int64{2, 3}, visibleIDs(v))
	assert.Equal(t, 4, v.Len()) // hidden, not removed

	// Case-insensitive substring against any cell.
	v.Filter("ALPHA")
	assert.Equal(t, []int64{1}, visibleIDs(v))

	// Duration text matches too.
	v.Filter("10:05")
	assert.Equal(t, []int64{3}, visibleIDs(v))

	// Clearing restores everything in original order.
	v.Filter("")
	assert.Equal(t, []int64{1, 2, 3, 4}, visibleIDs(v))
}

func TestView_FuzzyFilter(t *testing.T) {
	v := NewView(FilterFuzzy)
	v.SetTracks(catalog())

	// Subsequence match, not a strict substring.
	v.Filter("gma")
	assert.Contains(t, visibleIDs(v), int64(3))
}

func TestView_SortCycleRestoresNaturalOrder(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	assert.Equal(t, SortAscending, v.Sort(ColumnTitle))
	assert.Equal(t, SortDescending, v.Sort(ColumnTitle))
	assert.Equal(t, SortNatural, v.Sort(ColumnTitle))
	assert.Equal(t, []int64{1, 2, 3, 4}, visibleIDs(v))
}

func TestView_SortTextCaseInsensitive(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	v.Sort(ColumnTitle)
	// alpha, beta, delta, gamma regardless of case.
	assert.Equal(t, []int64{1, 2, 4, 3}, visibleIDs(v))

	v.Sort(ColumnTitle)
	assert.Equal(t, []int64{3, 4, 2, 1}, visibleIDs(v))
}

func TestView_SortNumericDuration(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	// mm:ss parses with the colon as a decimal separator: 2:00 < 2:30 <
	// 3:45 < 10:05.
	v.Sort(ColumnDuration)
	assert.Equal(t, []int64{2, 4, 1, 3}, visibleIDs(v))
}

func TestView_SortStableForEqualKeys(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	v.Sort(ColumnArtist)
	// Acme rows keep their relative order (2 before 3).
	assert.Equal(t, []int64{2, 3, 4, 1}, visibleIDs(v))
}

func TestView_SwitchingColumnRestartsCycle(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	v.Sort(ColumnTitle)
	mode := v.Sort(ColumnBitrate)
	assert.Equal(t, SortAscending, mode)
	assert.Equal(t, []int64{2, 3, 4, 1}, visibleIDs(v))
}

func TestView_RemoveTrack(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	assert.True(t, v.RemoveTrack(2))
	assert.False(t, v.RemoveTrack(2))
	assert.Equal(t, []int64{1, 3, 4}, visibleIDs(v))
	assert.Equal(t, 3, v.Len())
}

func TestView_Predecessor(t *testing.T) {
	v := NewView(FilterPlain)
	v.SetTracks(catalog())

	prev, ok := v.Predecessor("/media/c.mp3")
	assert.True(t, ok)
	assert.Equal(t, int64(2), prev.ID)

	// First visible row has no predecessor.
	_, ok = v.Predecessor("/media/a.mp3")
	assert.False(t, ok)

	// Hidden rows are skipped: with only the Acme rows visible, the
	// predecessor of c is b even though a sits between them unfiltered.
	v.Filter("acme")
	prev, ok = v.Predecessor("/media/c.mp3")
	assert.True(t, ok)
	assert.Equal(t, int64(2), prev.ID)

	// Unknown source.
	v.Filter("")
	_, ok = v.Predecessor("/media/nope.mp3")
	assert.False(t, ok)
}

func TestView_OnChangeFires(t *testing.T) {
	v := NewView(FilterPlain)
	calls := 0
	v.OnChange(func() { calls++ })

	v.SetTracks(catalog())
	v.Filter("acme")
	v.Sort(ColumnTitle)
	v.RemoveTrack(2)

	assert.Equal(t, 4, calls)
}

func TestParseLeadingNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3:45", 3.45},
		{"2:00", 2.0},
		{"320", 320},
		{"12.5x", 12.5},
		{"garbage", 0},
		{"", 0},
		{"-1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLeadingNumber(tt.in))
		})
	}
}
