package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isak000w/discbox/internal/app/autoqueue"
	"github.com/isak000w/discbox/internal/app/library"
	"github.com/isak000w/discbox/internal/app/recovery"
	"github.com/isak000w/discbox/internal/domain/history"
	"github.com/isak000w/discbox/internal/domain/queue"
	"github.com/isak000w/discbox/internal/domain/track"
)

// fakePlayer records calls and simulates a loaded source.
type fakePlayer struct {
	mu       sync.Mutex
	loaded   []string
	loadErr  error
	paused   bool
	position float64
	duration float64
	rate     float64
	loop     bool
	stopped  int
}

func (p *fakePlayer) Load(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loaded = append(p.loaded, source)
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	return nil
}

func (p *fakePlayer) Paused() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused, nil
}

func (p *fakePlayer) Position() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *fakePlayer) Duration() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, nil
}

func (p *fakePlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	return nil
}

func (p *fakePlayer) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	return nil
}

func (p *fakePlayer) SetLoop(loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
	return nil
}

func (p *fakePlayer) Close() error { return nil }

func (p *fakePlayer) lastLoaded() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.loaded) == 0 {
		return ""
	}
	return p.loaded[len(p.loaded)-1]
}

func (p *fakePlayer) loadedSources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.loaded))
	copy(out, p.loaded)
	return out
}

// fakeProber fails for selected sources and counts probes per source.
type fakeProber struct {
	mu     sync.Mutex
	broken map[string]bool
	counts map[string]int
}

func newFakeProber(broken ...string) *fakeProber {
	b := make(map[string]bool, len(broken))
	for _, s := range broken {
		b[s] = true
	}
	return &fakeProber{broken: b, counts: make(map[string]int)}
}

func (p *fakeProber) Probe(_ context.Context, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[source]++
	if p.broken[source] {
		return errors.Newf("media unreachable: %s", source)
	}
	return nil
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []int64
	err     error
}

func (d *fakeDeleter) DeleteTrack(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func testTracks() []track.Descriptor {
	return []track.Descriptor{
		{ID: 1, Source: "/media/a.mp3", Title: "Alpha", Artist: "Ann", Duration: 100 * time.Second},
		{ID: 2, Source: "/media/b.mp3", Title: "Beta", Artist: "Bob", Duration: 200 * time.Second},
		{ID: 3, Source: "/media/c.mp3", Title: "Gamma", Artist: "Cal", Duration: 300 * time.Second},
		{ID: 4, Source: "/media/d.mp3", Title: "Delta", Artist: "Dee", Duration: 400 * time.Second},
		{ID: 5, Source: "/media/e.mp3", Title: "Echo", Artist: "Eve", Duration: 500 * time.Second},
	}
}

type harness struct {
	session *Session
	player  *fakePlayer
	prober  *fakeProber
	deleter *fakeDeleter
	view    *library.View
	manual  *queue.Manual
	prompts *int
	confirm bool
}

func newHarness(t *testing.T, prober *fakeProber, confirmDelete bool) *harness {
	t.Helper()

	view := library.NewView(library.FilterPlain)
	view.SetTracks(testTracks())
	manual := queue.NewManual()
	deleter := &fakeDeleter{}

	prompts := 0
	h := &harness{
		player:  &fakePlayer{duration: 100},
		prober:  prober,
		deleter: deleter,
		view:    view,
		manual:  manual,
		prompts: &prompts,
		confirm: confirmDelete,
	}
	confirm := func(track.Descriptor) bool {
		prompts++
		return h.confirm
	}

	rec := recovery.NewHandler(prober, deleter, confirm, view, manual)
	h.session = New(h.player, view, manual, history.New(history.DefaultSize), autoqueue.New(autoqueue.DefaultLookahead), rec, Config{
		RestartThreshold: 2 * time.Second,
		ProgressInterval: time.Hour,
	})
	t.Cleanup(func() { _ = h.session.Close() })
	return h
}

func TestSession_PlayCommitsAndRebuilds(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[2]))

	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "/media/c.mp3", cur.Source)
	assert.Equal(t, "/media/c.mp3", h.player.lastLoaded())
	assert.False(t, h.session.Paused())

	// Sequential auto-queue continues from the successor and stops
	// before the current track.
	next := h.session.UpNext()
	require.Len(t, next, 4)
	assert.Equal(t, "/media/d.mp3", next[0].Source)
	assert.Equal(t, "/media/e.mp3", next[1].Source)
	assert.Equal(t, "/media/a.mp3", next[2].Source)
	assert.Equal(t, "/media/b.mp3", next[3].Source)
}

func TestSession_ManualQueueHasPriority(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.session.Enqueue(testTracks()[4])

	h.session.OnEnded()

	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "/media/e.mp3", cur.Source)
	assert.True(t, h.manual.IsEmpty())
}

func TestSession_SingleQueuedTrackThenAuto(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	require.NoError(t, h.session.EnqueueByID(3))

	h.session.OnEnded()
	cur, _ := h.session.Current()
	assert.Equal(t, "/media/c.mp3", cur.Source)

	// Queue drained, next end falls through to the auto-queue, which was
	// rebuilt around the queued track when it started.
	h.session.OnEnded()
	cur, _ = h.session.Current()
	assert.Equal(t, "/media/d.mp3", cur.Source)
}

func TestSession_MissingTrackConfirmedDeletion(t *testing.T) {
	h := newHarness(t, newFakeProber("/media/b.mp3"), true)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[1]))

	// b was removed everywhere and the session advanced past it.
	_, ok := h.view.TrackByID(2)
	assert.False(t, ok)
	assert.Equal(t, []int64{2}, h.deleter.deleted)
	assert.Equal(t, 1, *h.prompts)

	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.NotEqual(t, "/media/b.mp3", cur.Source)
	for _, tr := range h.session.UpNext() {
		assert.NotEqual(t, "/media/b.mp3", tr.Source)
	}
}

func TestSession_MissingTrackDeclinedAdvancesOnce(t *testing.T) {
	h := newHarness(t, newFakeProber("/media/b.mp3"), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[1]))

	// Declined: track stays in the catalog, nothing deleted, playback
	// moved to the next candidate.
	_, ok := h.view.TrackByID(2)
	assert.True(t, ok)
	assert.Empty(t, h.deleter.deleted)
	assert.Equal(t, 1, *h.prompts)

	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "/media/c.mp3", cur.Source)
}

func TestSession_AllTracksUnreachableGoesIdle(t *testing.T) {
	sources := make([]string, 0, 5)
	for _, tr := range testTracks() {
		sources = append(sources, tr.Source)
	}
	h := newHarness(t, newFakeProber(sources...), false)
	ctx := context.Background()

	err := h.session.Play(ctx, testTracks()[0])
	require.NoError(t, err)

	_, ok := h.session.Current()
	assert.False(t, ok)

	// One prompt for the whole failure chain, each source probed at
	// most once.
	assert.Equal(t, 1, *h.prompts)
	h.prober.mu.Lock()
	for src, n := range h.prober.counts {
		assert.LessOrEqual(t, n, 1, src)
	}
	h.prober.mu.Unlock()
}

func TestSession_MissingQueuedTrackPurgedFromQueue(t *testing.T) {
	h := newHarness(t, newFakeProber("/media/d.mp3"), true)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.session.Enqueue(testTracks()[3])
	h.session.Enqueue(testTracks()[4])

	h.session.OnEnded()

	// d was unreachable, deleted after confirmation, and e (next in the
	// manual queue) plays instead.
	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "/media/e.mp3", cur.Source)
	assert.Equal(t, []int64{4}, h.deleter.deleted)
	assert.True(t, h.manual.IsEmpty())
}

func TestSession_TogglePlayPause(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))

	require.NoError(t, h.session.TogglePlayPause(ctx))
	assert.True(t, h.session.Paused())

	require.NoError(t, h.session.TogglePlayPause(ctx))
	assert.False(t, h.session.Paused())
}

func TestSession_TogglePlayPauseWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.TogglePlayPause(ctx))

	_, ok := h.session.Current()
	assert.False(t, ok)
	assert.Empty(t, h.player.loadedSources())
}

func TestSession_PreviousRestartsPastThreshold(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[2]))
	h.player.position = 30

	require.NoError(t, h.session.Previous(ctx))

	cur, _ := h.session.Current()
	assert.Equal(t, "/media/c.mp3", cur.Source)
	assert.Equal(t, float64(0), h.player.position)
}

func TestSession_PreviousPlaysVisiblePredecessor(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[2]))
	h.player.position = 1

	require.NoError(t, h.session.Previous(ctx))

	cur, _ := h.session.Current()
	assert.Equal(t, "/media/b.mp3", cur.Source)
}

func TestSession_PreviousAtTopRestarts(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.player.position = 1

	require.NoError(t, h.session.Previous(ctx))

	cur, _ := h.session.Current()
	assert.Equal(t, "/media/a.mp3", cur.Source)
	assert.Equal(t, float64(0), h.player.position)
}

func TestSession_SeekToClamps(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.player.duration = 100

	require.NoError(t, h.session.SeekTo(250))
	assert.Equal(t, float64(100), h.player.position)

	require.NoError(t, h.session.SeekTo(-5))
	assert.Equal(t, float64(0), h.player.position)
}

func TestSession_SeekToNoDurationIsNoop(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.player.duration = 0
	h.player.position = 7

	require.NoError(t, h.session.SeekTo(50))
	assert.Equal(t, float64(7), h.player.position)
}

func TestSession_RateClampedAndApplied(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))

	require.NoError(t, h.session.SetRate(1.5))
	assert.Equal(t, 1.5, h.player.rate)

	require.NoError(t, h.session.SetRate(100))
	assert.Equal(t, 4.0, h.session.Rate())
}

func TestSession_RatePersistsAcrossTracks(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.SetRate(2.0))
	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	assert.Equal(t, 2.0, h.player.rate)
}

func TestSession_ToggleLoop(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))

	on, err := h.session.ToggleLoop()
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, h.player.loop)

	off, err := h.session.ToggleLoop()
	require.NoError(t, err)
	assert.False(t, off)
	assert.False(t, h.player.loop)
}

func TestSession_ToggleShuffleRebuilds(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	require.True(t, h.session.ToggleShuffle())

	// Small catalog: the exclusion fallback keeps the full pool in play,
	// so the shuffled queue is a permutation of the whole catalog.
	shuffled := h.session.UpNext()
	require.Len(t, shuffled, 5)
	seen := make(map[string]bool, len(shuffled))
	for _, tr := range shuffled {
		seen[tr.Source] = true
	}
	assert.Len(t, seen, 5)

	require.False(t, h.session.ToggleShuffle())
	next := h.session.UpNext()
	require.NotEmpty(t, next)
	assert.Equal(t, "/media/b.mp3", next[0].Source)
}

func TestSession_FilterNarrowsAutoQueue(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.session.Filter("beta")

	next := h.session.UpNext()
	require.Len(t, next, 1)
	assert.Equal(t, "/media/b.mp3", next[0].Source)

	h.session.Filter("")
	assert.Len(t, h.session.UpNext(), 4)
}

func TestSession_PlayQueuedAt(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	h.session.Enqueue(testTracks()[1])
	h.session.Enqueue(testTracks()[3])

	require.NoError(t, h.session.PlayQueuedAt(ctx, 1))

	cur, _ := h.session.Current()
	assert.Equal(t, "/media/d.mp3", cur.Source)
	assert.Equal(t, 1, h.manual.Len())

	assert.ErrorIs(t, h.session.PlayQueuedAt(ctx, 5), ErrBadIndex)
}

func TestSession_HistoryRecordsNewestFirst(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	require.NoError(t, h.session.Play(ctx, testTracks()[1]))

	assert.Equal(t, []string{"/media/b.mp3", "/media/a.mp3"}, h.session.History())
}

func TestSession_MediaErrorSkipsToNext(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.session.OnMediaError(errors.New("decode failed"))

	cur, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "/media/b.mp3", cur.Source)
	assert.Equal(t, 0, *h.prompts)
}

func TestSession_EventsEmitted(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))

	var seen []EventType
	for {
		select {
		case e := <-h.session.Events():
			seen = append(seen, e.Type)
			continue
		default:
		}
		break
	}
	assert.Contains(t, seen, EvtTrackStarted)
	assert.Contains(t, seen, EvtQueueRebuilt)
}

func TestSession_NextWithEmptyCatalogIsNoop(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	h.session.SetCatalog(nil)
	require.NoError(t, h.session.Next(ctx))
	_, ok := h.session.Current()
	assert.False(t, ok)
}

func TestSession_PlayByIDUnknownTrack(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	assert.ErrorIs(t, h.session.PlayByID(context.Background(), 99), ErrUnknownTrack)
}

func TestSession_FailedStartNotRecordedInHistory(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	h.player.loadErr = errors.New("ipc connection closed")

	require.Error(t, h.session.Play(ctx, testTracks()[0]))
	assert.Empty(t, h.session.History())
	_, ok := h.session.Current()
	assert.False(t, ok)
}

func TestSession_EndedWithNothingLeftGoesIdle(t *testing.T) {
	h := newHarness(t, newFakeProber(), false)
	ctx := context.Background()

	require.NoError(t, h.session.Play(ctx, testTracks()[0]))
	h.session.Filter("alpha") // only the current track stays visible

	h.session.OnEnded()

	_, ok := h.session.Current()
	assert.False(t, ok)
}
