// Package player owns the single audio resource and its transport state.
// It is the sole writer of playback state; every view only holds read
// subscriptions, so at most one track plays at a time system-wide.
package player

import (
	"math"
	"sync"

	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/model"
)

// State is a position in the per-track playback state machine.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateErrored State = "errored"
)

// Player is the playback engine. One instance exists per process,
// created by the composition root.
type Player struct {
	mu      sync.Mutex
	backend Backend

	current   *model.Track
	state     State
	duration  float64
	position  float64
	volume    float64 // 0-100 scale, in-memory only
	muted     bool
	hasSource bool

	trackS    *stream.Subject[*model.Track]
	playingS  *stream.Subject[bool]
	positionS *stream.Subject[float64]
	durationS *stream.Subject[float64]
	loadingS  *stream.Subject[bool]
	stateS    *stream.Subject[State]

	done chan struct{}
}

// New creates the playback engine on top of the given backend and starts
// consuming its events.
func New(backend Backend) *Player {
	p := &Player{
		backend:   backend,
		state:     StateEmpty,
		volume:    100,
		trackS:    stream.New[*model.Track](),
		playingS:  stream.NewWithValue(false),
		positionS: stream.NewWithValue(0.0),
		durationS: stream.NewWithValue(0.0),
		loadingS:  stream.NewWithValue(false),
		stateS:    stream.NewWithValue(StateEmpty),
		done:      make(chan struct{}),
	}
	go p.consumeEvents()
	return p
}

// Track is the current-track stream; late subscribers receive the latest value.
func (p *Player) Track() *stream.Subject[*model.Track] { return p.trackS }

// Playing is the playing-flag stream.
func (p *Player) Playing() *stream.Subject[bool] { return p.playingS }

// Position is the playback-position stream, in seconds.
func (p *Player) Position() *stream.Subject[float64] { return p.positionS }

// Duration is the track-duration stream; 0 until metadata is known.
func (p *Player) Duration() *stream.Subject[float64] { return p.durationS }

// Loading is the loading-flag stream.
func (p *Player) Loading() *stream.Subject[bool] { return p.loadingS }

// State is the state-machine stream. StateErrored is distinct from
// StateEnded so subscribers can tell a failed load from a finished track.
func (p *Player) State() *stream.Subject[State] { return p.stateS }

// SetTrack loads a new track into the audio resource. A track without an
// absolute HTTP(S) media locator is rejected silently: the previous
// track and all published state stay untouched. Callers must not rely on
// this guard for error feedback.
func (p *Player) SetTrack(track *model.Track) {
	if track == nil || !track.HasPlayableURL() {
		title := ""
		if track != nil {
			title = track.Title
		}
		logger.Warn("refusing to load track without absolute media URL",
			logger.String("title", title))
		return
	}

	p.mu.Lock()
	p.current = track
	p.hasSource = true
	p.position = 0
	p.duration = 0
	p.setState(StateLoading)
	p.mu.Unlock()

	p.trackS.Publish(track)
	p.positionS.Publish(0)
	p.durationS.Publish(0)
	p.loadingS.Publish(true)

	if err := p.backend.SetSource(track.URL); err != nil {
		logger.Error("failed to load track source",
			logger.Int64("trackId", track.ID),
			logger.ErrorField(err))
		p.fail(err)
	}
}

// Play requests playback start. It returns nil and publishes
// playing=true once playback begins. A benign abort caused by a
// near-simultaneous source change is swallowed; any other failure is
// returned to the caller with playing published as false.
func (p *Player) Play() error {
	err := p.backend.Play()
	if err == ErrAborted {
		logger.Debug("play aborted by source change")
		return nil
	}
	if err != nil {
		logger.Error("playback failed to start", logger.ErrorField(err))
		p.playingS.Publish(false)
		return err
	}

	p.mu.Lock()
	p.setState(StatePlaying)
	p.mu.Unlock()
	p.playingS.Publish(true)
	return nil
}

// Pause halts playback. Idempotent; always publishes playing=false.
func (p *Player) Pause() {
	p.backend.Pause()

	p.mu.Lock()
	if p.state == StatePlaying {
		p.setState(StatePaused)
	}
	p.mu.Unlock()
	p.playingS.Publish(false)
}

// TogglePlay dispatches to Play or Pause based on the current playing
// flag. Without a loaded source it is a no-op with a warning.
func (p *Player) TogglePlay() error {
	p.mu.Lock()
	hasSource := p.hasSource
	p.mu.Unlock()

	if !hasSource {
		logger.Warn("togglePlay called with no source set")
		return nil
	}

	if playing, _ := p.playingS.Value(); playing {
		p.Pause()
		return nil
	}
	return p.Play()
}

// SeekTo jumps to the given position in seconds. Non-finite, negative or
// beyond-duration targets are ignored with a warning. The new position
// is published optimistically before the next progress tick.
func (p *Player) SeekTo(seconds float64) {
	p.mu.Lock()
	duration := p.duration
	p.mu.Unlock()

	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 || seconds > duration {
		logger.Warn("ignoring invalid seek target",
			logger.Float64("target", seconds),
			logger.Float64("duration", duration))
		return
	}

	p.backend.Seek(seconds)

	p.mu.Lock()
	p.position = seconds
	p.mu.Unlock()
	p.positionS.Publish(seconds)
}

// SetVolume takes a 0-100 level, clamps it and maps it linearly onto the
// resource's native 0.0-1.0 range. The level persists in memory only.
func (p *Player) SetVolume(level float64) {
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}

	p.mu.Lock()
	p.volume = level
	muted := p.muted
	p.mu.Unlock()

	if !muted {
		p.backend.SetVolume(level / 100)
	}
}

// Volume returns the current 0-100 volume level.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetMuted silences the resource without losing the volume level.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	level := p.volume
	p.mu.Unlock()

	if muted {
		p.backend.SetVolume(0)
	} else {
		p.backend.SetVolume(level / 100)
	}
}

// Muted reports whether the resource is muted.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Close stops event consumption and releases the audio resource.
func (p *Player) Close() error {
	close(p.done)
	return p.backend.Close()
}

// setState records a transition. Caller holds p.mu.
func (p *Player) setState(s State) {
	p.state = s
	p.stateS.Publish(s)
}

// fail collapses the engine into the errored state: loading and playing
// drop to false, the error is logged, position and track stay as they were.
func (p *Player) fail(err error) {
	p.mu.Lock()
	p.setState(StateErrored)
	p.mu.Unlock()

	p.loadingS.Publish(false)
	p.playingS.Publish(false)
	logger.Error("playback resource error", logger.ErrorField(err))
}

func (p *Player) consumeEvents() {
	events := p.backend.Events()
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *Player) handleEvent(ev Event) {
	switch ev.Type {
	case EventMetadata:
		p.mu.Lock()
		p.duration = ev.Duration
		if p.state == StateLoading {
			p.setState(StateReady)
		}
		p.mu.Unlock()
		p.durationS.Publish(ev.Duration)
		p.loadingS.Publish(false)

	case EventProgress:
		p.mu.Lock()
		p.position = ev.Position
		p.mu.Unlock()
		p.positionS.Publish(ev.Position)

	case EventEnded:
		// Position stays at its last value; no auto-advance.
		p.mu.Lock()
		p.setState(StateEnded)
		p.mu.Unlock()
		p.playingS.Publish(false)

	case EventError:
		p.fail(ev.Err)
	}
}
