// Package main provides the discbox player entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/app/autoqueue"
	"github.com/isak000w/discbox/internal/app/library"
	"github.com/isak000w/discbox/internal/app/playliststore"
	"github.com/isak000w/discbox/internal/app/recovery"
	"github.com/isak000w/discbox/internal/app/session"
	"github.com/isak000w/discbox/internal/domain/history"
	"github.com/isak000w/discbox/internal/domain/queue"
	"github.com/isak000w/discbox/internal/domain/track"
	"github.com/isak000w/discbox/internal/infra/catalogd"
	"github.com/isak000w/discbox/internal/infra/config"
	"github.com/isak000w/discbox/internal/infra/logger"
	"github.com/isak000w/discbox/internal/infra/mpv"
)

var (
	app        = kingpin.New("discbox", "catalog music player")
	configPath = app.Flag("config", "Path to config file").Default("config/discbox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load config first so the logger can follow it
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		// Logs go to stderr so they don't interleave with the prompt
		Output:     "stderr",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if cfg.Log.Output == "file" && cfg.Log.File != "" {
		loggerConfig.Output = "file"
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run wires the player together and drives the command loop. A separate
// function so defers fire on error returns too.
func run(cfg *config.Config) error {
	ctx := context.Background()

	catalog, err := catalogd.New(catalogd.Config{
		BaseURL:         cfg.Catalog.URL,
		ProbeTimeout:    cfg.ProbeTimeout(),
		UploadChunkSize: cfg.Catalog.UploadChunkSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	store, err := playliststore.NewStoreFromSettings(cfg.Playlists.Store, cfg.Playlists.Settings)
	if err != nil {
		return fmt.Errorf("failed to create playlist store: %w", err)
	}
	playlists, err := playliststore.NewManager(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}

	player, err := mpv.New(mpv.Config{
		Binary:     cfg.Player.MpvBinary,
		SocketPath: cfg.Player.MpvSocket,
	})
	if err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}

	input := newInputRouter(os.Stdin)

	view := library.NewView(library.FilterMode(cfg.Library.FilterMode))
	manual := queue.NewManual()
	rec := recovery.NewHandler(catalog, catalog, confirmDelete(input), view, manual)

	sess := session.New(
		player,
		view,
		manual,
		history.New(cfg.Queue.HistorySize),
		autoqueue.New(cfg.Queue.Lookahead),
		rec,
		session.Config{
			RestartThreshold: cfg.RestartThreshold(),
			ProgressInterval: cfg.ProgressInterval(),
		},
	)
	defer sess.Close()
	player.Start(sess)

	go printEvents(sess.Events())

	zlog.Info().Msgf("Loading catalog from %s", cfg.Catalog.URL)
	tracks, err := catalog.ListTracks(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("Catalog unavailable, starting with empty library")
	}
	sess.SetCatalog(tracks)
	fmt.Printf("discbox ready: %d tracks. Type 'help' for commands.\n", len(tracks))

	// Ctrl+C shuts the player down cleanly
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	repl := &commandLoop{
		ctx:       ctx,
		sess:      sess,
		view:      view,
		catalog:   catalog,
		playlists: playlists,
	}

	fmt.Print("> ")
	for {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			return nil
		case line, ok := <-input.Commands():
			if !ok {
				return nil
			}
			if quit := repl.handle(line); quit {
				return nil
			}
			fmt.Print("> ")
		}
	}
}

// inputRouter is the sole owner of the input stream. Lines normally
// feed the command loop; while a confirmation prompt is outstanding the
// next line answers the prompt instead, so the two consumers never race
// for the same line.
type inputRouter struct {
	prompting atomic.Bool
	cmdCh     chan string
	promptCh  chan string
}

func newInputRouter(r io.Reader) *inputRouter {
	ir := &inputRouter{
		// Buffered so queued commands cannot wedge the router while a
		// prompt waits for its answer.
		cmdCh:    make(chan string, 8),
		promptCh: make(chan string, 1),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if ir.prompting.Load() {
				ir.promptCh <- line
			} else {
				ir.cmdCh <- line
			}
		}
		close(ir.cmdCh)
		close(ir.promptCh)
	}()
	return ir
}

// Commands returns the command-loop line channel. Closed when the input
// stream ends.
func (ir *inputRouter) Commands() <-chan string {
	return ir.cmdCh
}

// Ask prints a question and consumes the next input line as its answer,
// diverting it from the command loop. Reports false when the input
// stream has ended.
func (ir *inputRouter) Ask(question string) (string, bool) {
	ir.prompting.Store(true)
	defer ir.prompting.Store(false)

	// Drop a stale line left over from a previous prompt
	select {
	case <-ir.promptCh:
	default:
	}

	fmt.Print(question)
	line, ok := <-ir.promptCh
	return line, ok
}

// confirmDelete asks whether a missing track should be removed from the
// catalog, consuming the next input line as the answer.
func confirmDelete(input *inputRouter) recovery.Confirmer {
	return func(t track.Descriptor) bool {
		q := fmt.Sprintf("Media for %q (%s) is unreachable. Delete it from the catalog? [y/N] ", t.Title, t.Artist)
		line, ok := input.Ask(q)
		if !ok {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func printEvents(events <-chan session.Event) {
	for e := range events {
		switch e.Type {
		case session.EvtTrackStarted:
			fmt.Printf("\n▶ %s - %s [%s]\n> ", e.Track.Artist, e.Track.Title, e.Track.FormatDuration())
		case session.EvtStateChanged:
			if e.Paused {
				fmt.Printf("\n⏸ paused\n> ")
			} else {
				fmt.Printf("\n▶ resumed\n> ")
			}
		case session.EvtTrackMissing:
			// The confirm prompt handles the user-facing part
			zlog.Debug().Msgf("missing media: %s", e.Track.Source)
		case session.EvtTrackRemoved:
			fmt.Printf("\n✕ removed from catalog: %s - %s\n> ", e.Track.Artist, e.Track.Title)
		case session.EvtError:
			fmt.Printf("\n! playback error: %v\n> ", e.Err)
		}
	}
}

type commandLoop struct {
	ctx       context.Context
	sess      *session.Session
	view      *library.View
	catalog   *catalogd.Client
	playlists *playliststore.Manager
}

// handle runs one command line. Returns true to quit.
func (c *commandLoop) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "help":
		printHelp()
	case "quit", "exit":
		return true
	case "list", "ls":
		c.printTracks()
	case "play":
		err = c.play(args)
	case "pause", "p":
		err = c.sess.TogglePlayPause(c.ctx)
	case "next", "n":
		err = c.sess.Next(c.ctx)
	case "prev":
		err = c.sess.Previous(c.ctx)
	case "seek":
		err = c.seek(args)
	case "rate":
		err = c.rate(args)
	case "loop":
		var on bool
		if on, err = c.sess.ToggleLoop(); err == nil {
			fmt.Printf("loop: %v\n", on)
		}
	case "shuffle":
		fmt.Printf("shuffle: %v\n", c.sess.ToggleShuffle())
	case "queue", "q":
		c.printQueue()
	case "add":
		err = c.enqueue(args)
	case "qplay":
		err = c.playQueued(args)
	case "qrm":
		err = c.removeQueued(args)
	case "sort":
		err = c.sort(args)
	case "filter", "/":
		c.sess.Filter(strings.Join(args, " "))
		fmt.Printf("%d tracks visible\n", c.view.Len())
	case "history":
		for i, src := range c.sess.History() {
			fmt.Printf("%2d. %s\n", i+1, src)
		}
	case "pl":
		err = c.playlist(args)
	case "upload":
		err = c.upload(args)
	case "scan":
		err = c.scan()
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return false
}

func (c *commandLoop) printTracks() {
	cur, _ := c.sess.Current()
	for _, t := range c.view.VisibleTracks() {
		marker := "  "
		if t.ID == cur.ID && !cur.IsZero() {
			marker = "▶ "
		}
		fmt.Printf("%s%4d  %-30s %-20s %-20s %s\n",
			marker, t.ID, clip(t.Title, 30), clip(t.Artist, 20), clip(t.Album, 20), t.FormatDuration())
	}
}

func (c *commandLoop) printQueue() {
	next := c.sess.UpNext()
	if len(next) == 0 {
		fmt.Println("queue empty")
		return
	}
	for i, t := range next {
		fmt.Printf("%2d. %s - %s\n", i+1, t.Artist, t.Title)
	}
}

func (c *commandLoop) play(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: play <track-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad track id %q", args[0])
	}
	return c.sess.PlayByID(c.ctx, id)
}

func (c *commandLoop) enqueue(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: add <track-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad track id %q", args[0])
	}
	return c.sess.EnqueueByID(id)
}

func (c *commandLoop) playQueued(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: qplay <position>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad position %q", args[0])
	}
	return c.sess.PlayQueuedAt(c.ctx, n-1)
}

func (c *commandLoop) removeQueued(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: qrm <position>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad position %q", args[0])
	}
	return c.sess.RemoveQueuedAt(n - 1)
}

func (c *commandLoop) seek(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: seek <seconds>")
	}
	sec, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("bad position %q", args[0])
	}
	return c.sess.SeekTo(sec)
}

func (c *commandLoop) rate(args []string) error {
	if len(args) != 1 {
		fmt.Printf("rate: %.2f\n", c.sess.Rate())
		return nil
	}
	r, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("bad rate %q", args[0])
	}
	return c.sess.SetRate(r)
}

var columnsByName = map[string]library.Column{
	"title":    library.ColumnTitle,
	"artist":   library.ColumnArtist,
	"album":    library.ColumnAlbum,
	"genre":    library.ColumnGenre,
	"duration": library.ColumnDuration,
	"bitrate":  library.ColumnBitrate,
}

func (c *commandLoop) sort(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sort <title|artist|album|genre|duration|bitrate>")
	}
	col, ok := columnsByName[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown column %q", args[0])
	}
	mode := c.sess.SortBy(col)
	fmt.Printf("sort %s: %s\n", col, mode)
	return nil
}

func (c *commandLoop) playlist(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pl <list|show|create|rename|delete|add> ...")
	}
	switch args[0] {
	case "list":
		for _, p := range c.playlists.List() {
			fmt.Printf("%-20s %3d tracks  %s\n", p.Name, len(p.Tracks), p.TotalDuration())
		}
		return nil
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: pl show <name>")
		}
		p, ok := c.playlists.Get(args[1])
		if !ok {
			return fmt.Errorf("no playlist %q", args[1])
		}
		for i, t := range p.Tracks {
			fmt.Printf("%2d. %s - %s\n", i+1, t.Artist, t.Title)
		}
		return nil
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("usage: pl create <name>")
		}
		return c.playlists.Create(c.ctx, args[1])
	case "rename":
		if len(args) != 3 {
			return fmt.Errorf("usage: pl rename <old> <new>")
		}
		return c.playlists.Rename(c.ctx, args[1], args[2])
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: pl delete <name>")
		}
		return c.playlists.Delete(c.ctx, args[1])
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: pl add <name> <track-id>")
		}
		id, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad track id %q", args[2])
		}
		t, ok := c.view.TrackByID(id)
		if !ok {
			return fmt.Errorf("no track %d", id)
		}
		return c.playlists.AppendTrack(c.ctx, args[1], t)
	default:
		return fmt.Errorf("unknown playlist command %q", args[0])
	}
}

func (c *commandLoop) upload(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: upload <file> [file...]")
	}
	result, err := c.catalog.Upload(c.ctx, args)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %d, skipped %d, failed %d\n", result.Uploaded, result.Skipped, result.Failed)
	if result.Uploaded > 0 {
		return c.reload()
	}
	return nil
}

func (c *commandLoop) scan() error {
	added, err := c.catalog.ScanLibrary(c.ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scan added %d tracks\n", added)
	return c.reload()
}

func (c *commandLoop) reload() error {
	tracks, err := c.catalog.ListTracks(c.ctx)
	if err != nil {
		return err
	}
	c.sess.SetCatalog(tracks)
	fmt.Printf("catalog reloaded: %d tracks\n", len(tracks))
	return nil
}

func printHelp() {
	fmt.Print(`Commands:
  list                 show visible catalog tracks
  play <id>            play a track by catalog id
  pause                toggle play/pause
  next / prev          advance / go back
  seek <seconds>       jump within the current track
  rate [value]         show or set playback rate (0.25-4.0)
  loop                 toggle single-track loop
  shuffle              toggle shuffle mode
  queue                show upcoming tracks (manual queue first)
  add <id>             enqueue a track
  qplay <pos>          play a queued track immediately
  qrm <pos>            remove a queued track
  sort <column>        cycle sort: natural -> ascending -> descending
  filter <text>        filter the catalog (empty text clears)
  history              show recently played sources
  pl list|show|create|rename|delete|add
  upload <files...>    upload audio files to the catalog
  scan                 rescan the catalog's media directory
  quit
`)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
