// Package mpv drives an mpv subprocess over its JSON IPC socket as the
// session's media primitive.
package mpv

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/DexterLB/mpvipc"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/isak000w/discbox/internal/app/session"
)

type mpvProperty uint

const (
	pauseProperty mpvProperty = iota + 1
	timePositionProperty
	durationProperty
)

var observedProperties = map[mpvProperty]string{
	pauseProperty:        "pause",
	timePositionProperty: "time-pos",
	durationProperty:     "duration",
}

// Config represents mpv player configuration.
type Config struct {
	Binary     string // mpv executable, default "mpv"
	SocketPath string // IPC socket path
}

// Player is an mpv-backed media player. It implements session.Player;
// events flow back through the session.MediaEvents handler passed to
// Start.
type Player struct {
	conn       *mpvipc.Connection
	cmd        *exec.Cmd
	socketPath string

	// Observed properties, updated by the event pump.
	pos uint64
	dur uint64
}

// New spawns mpv in idle mode and connects to its IPC socket.
func New(cfg Config) (*Player, error) {
	if cfg.Binary == "" {
		cfg.Binary = "mpv"
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(os.TempDir(), "discbox", "mpv.sock")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to make socket directory")
	}
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return nil, errors.Wrap(err, "failed to clean up socket")
	}

	args := []string{
		"--idle",
		"--quiet",
		"--pause",
		"--no-input-terminal",
		"--no-video",
		"--gapless-audio=weak",
		"--input-ipc-server=" + cfg.SocketPath,
	}

	cmd := exec.Command(cfg.Binary, args...)
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start mpv")
	}

	conn := mpvipc.NewConnection(cfg.SocketPath)

	// Spin until the socket accepts, with a 5-second cap.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for {
		err = conn.Open()
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			return nil, errors.Wrap(err, "failed to open mpv connection")
		default:
			runtime.Gosched()
		}
	}

	if _, err := conn.Call("enable_event", "end-file"); err != nil {
		return nil, errors.Wrap(err, "failed to enable end-file event")
	}
	for id, property := range observedProperties {
		if _, err := conn.Call("observe_property", id, property); err != nil {
			return nil, errors.Wrapf(err, "failed to observe property %q", property)
		}
	}

	return &Player{
		conn:       conn,
		cmd:        cmd,
		socketPath: cfg.SocketPath,
	}, nil
}

// Start runs the event pump in a background goroutine. Must be called
// once, before playback begins.
func (p *Player) Start(handler session.MediaEvents) {
	events, _ := p.conn.NewEventListener()
	go func() {
		for event := range events {
			p.handleEvent(event, handler)
		}
	}()
}

func (p *Player) handleEvent(event *mpvipc.Event, handler session.MediaEvents) {
	if event.Data != nil {
		switch mpvProperty(event.ID) {
		case pauseProperty:
			if b, ok := event.Data.(bool); ok {
				handler.OnPauseChanged(b)
			}
		case timePositionProperty:
			if f, ok := event.Data.(float64); ok {
				atomic.StoreUint64(&p.pos, math.Float64bits(f))
			}
		case durationProperty:
			if f, ok := event.Data.(float64); ok {
				atomic.StoreUint64(&p.dur, math.Float64bits(f))
			}
		}
		return
	}

	if event.Name != "end-file" {
		return
	}
	// loadfile/stop also raise end-file; only natural and failed
	// endings concern the session.
	switch event.Reason {
	case "eof":
		handler.OnEnded()
	case "error":
		handler.OnMediaError(errors.Newf("mpv: playback failed"))
	}
}

// Load implements session.Player.
func (p *Player) Load(source string) error {
	atomic.StoreUint64(&p.pos, 0)
	atomic.StoreUint64(&p.dur, 0)
	if _, err := p.conn.Call("loadfile", source, "replace"); err != nil {
		return errors.Wrapf(err, "loadfile %s", source)
	}
	return nil
}

// Play implements session.Player.
func (p *Player) Play() error {
	return errors.Wrap(p.conn.Set("pause", false), "unpause")
}

// Pause implements session.Player.
func (p *Player) Pause() error {
	return errors.Wrap(p.conn.Set("pause", true), "pause")
}

// Stop implements session.Player.
func (p *Player) Stop() error {
	if _, err := p.conn.Call("stop"); err != nil {
		return errors.Wrap(err, "stop")
	}
	return nil
}

// Paused implements session.Player.
func (p *Player) Paused() (bool, error) {
	v, err := p.conn.Get("pause")
	if err != nil {
		return false, errors.Wrap(err, "get pause")
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Newf("unexpected pause value %v", v)
	}
	return b, nil
}

// Position implements session.Player. Returns the last observed
// time-pos, which mpv pushes continuously while playing.
func (p *Player) Position() (float64, error) {
	return math.Float64frombits(atomic.LoadUint64(&p.pos)), nil
}

// Duration implements session.Player. Zero until mpv has loaded the
// source's metadata.
func (p *Player) Duration() (float64, error) {
	return math.Float64frombits(atomic.LoadUint64(&p.dur)), nil
}

// Seek implements session.Player.
func (p *Player) Seek(seconds float64) error {
	return errors.Wrap(p.conn.Set("time-pos", seconds), "seek")
}

// SetRate implements session.Player.
func (p *Player) SetRate(rate float64) error {
	return errors.Wrap(p.conn.Set("speed", rate), "set speed")
}

// SetLoop implements session.Player. While loop-file is active mpv
// repeats the track itself and raises no end-file event.
func (p *Player) SetLoop(loop bool) error {
	value := "no"
	if loop {
		value = "inf"
	}
	return errors.Wrap(p.conn.Set("loop-file", value), "set loop-file")
}

// Close shuts mpv down and removes the socket.
func (p *Player) Close() error {
	p.conn.Close()

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		zlog.Warn().Err(err).Msg("mpv: SIGINT failed, killing")
		if kerr := p.cmd.Process.Kill(); kerr != nil {
			return errors.Wrap(kerr, "failed to kill mpv")
		}
	} else {
		_ = p.cmd.Wait()
	}

	if err := os.Remove(p.socketPath); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Err(err).Msg("mpv: failed to clean up socket")
	}
	return nil
}
