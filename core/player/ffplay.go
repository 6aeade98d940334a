package player

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"streamfm/logger"
)

const progressInterval = 500 * time.Millisecond

// FFPlay is a Backend driving an ffplay subprocess. ffplay has no
// runtime control channel, so pause/resume maps onto SIGSTOP/SIGCONT and
// seeking restarts the process at the target offset. Position is derived
// from a wall clock anchored at the last start or seek.
type FFPlay struct {
	ffplayPath  string
	ffprobePath string

	mu       sync.Mutex
	cmd      *exec.Cmd
	source   string
	gen      int // bumped on every SetSource; aborts stale Play calls
	duration float64
	anchor   float64 // position at the moment the clock was anchored
	started  time.Time
	playing  bool
	paused   bool
	volume   float64 // native 0.0-1.0

	events chan Event
	ticker *time.Ticker
	done   chan struct{}
}

// NewFFPlay creates an ffplay-backed audio resource. Empty paths default
// to looking the binaries up on PATH.
func NewFFPlay(ffplayPath, ffprobePath string) *FFPlay {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	f := &FFPlay{
		ffplayPath:  ffplayPath,
		ffprobePath: ffprobePath,
		volume:      1.0,
		events:      make(chan Event, 32),
		done:        make(chan struct{}),
	}
	go f.progressLoop()
	return f
}

// Events returns the backend notification channel.
func (f *FFPlay) Events() <-chan Event { return f.events }

// SetSource loads url as the only source, superseding any running
// playback, and probes the media metadata asynchronously.
func (f *FFPlay) SetSource(url string) error {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.stopProcessLocked()
	f.source = url
	f.duration = 0
	f.anchor = 0
	f.playing = false
	f.paused = false
	f.mu.Unlock()

	go f.probe(url, gen)
	return nil
}

// probe reads the media duration with ffprobe and emits EventMetadata,
// unless the source changed while the probe was in flight.
func (f *FFPlay) probe(url string, gen int) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		url,
	}
	var out bytes.Buffer
	cmd := exec.Command(f.ffprobePath, args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		f.mu.Lock()
		stale := gen != f.gen
		f.mu.Unlock()
		if !stale {
			f.emit(Event{Type: EventError, Err: fmt.Errorf("ffprobe %s: %w", url, err)})
		}
		return
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		f.mu.Lock()
		stale := gen != f.gen
		f.mu.Unlock()
		if !stale {
			f.emit(Event{Type: EventError, Err: fmt.Errorf("parse ffprobe duration: %w", err)})
		}
		return
	}

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.duration = duration
	f.mu.Unlock()
	f.emit(Event{Type: EventMetadata, Duration: duration})
}

// Play starts or resumes playback.
func (f *FFPlay) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.source == "" {
		return fmt.Errorf("no source loaded")
	}
	if f.playing {
		return nil
	}
	if f.paused && f.cmd != nil && f.cmd.Process != nil {
		if err := f.cmd.Process.Signal(syscall.SIGCONT); err != nil {
			return fmt.Errorf("resume ffplay: %w", err)
		}
		f.paused = false
		f.playing = true
		f.started = time.Now()
		return nil
	}
	return f.startProcessLocked(f.anchor)
}

// startProcessLocked launches ffplay at the given offset. Caller holds f.mu.
func (f *FFPlay) startProcessLocked(offset float64) error {
	gen := f.gen
	args := []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-volume", strconv.Itoa(int(f.volume * 100)),
	}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 3, 64))
	}
	args = append(args, f.source)

	cmd := exec.Command(f.ffplayPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	if gen != f.gen {
		// Source changed between the request and the spawn.
		_ = cmd.Process.Kill()
		return ErrAborted
	}

	f.cmd = cmd
	f.anchor = offset
	f.started = time.Now()
	f.playing = true
	f.paused = false

	go f.waitForExit(cmd, gen)
	return nil
}

// waitForExit watches the subprocess and reports natural end vs failure.
func (f *FFPlay) waitForExit(cmd *exec.Cmd, gen int) {
	err := cmd.Wait()

	f.mu.Lock()
	if gen != f.gen || f.cmd != cmd {
		// Killed by a source change or seek restart.
		f.mu.Unlock()
		return
	}
	f.cmd = nil
	f.playing = false
	f.paused = false
	f.anchor = f.duration
	f.mu.Unlock()

	if err != nil {
		f.emit(Event{Type: EventError, Err: fmt.Errorf("ffplay exited: %w", err)})
		return
	}
	f.emit(Event{Type: EventEnded})
}

// Pause stops the subprocess clock without losing position.
func (f *FFPlay) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.playing || f.cmd == nil || f.cmd.Process == nil {
		return
	}
	if err := f.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		logger.Warn("failed to pause ffplay", logger.ErrorField(err))
		return
	}
	f.anchor += time.Since(f.started).Seconds()
	f.playing = false
	f.paused = true
}

// Seek jumps to the given offset, restarting the subprocess when playing.
func (f *FFPlay) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wasPlaying := f.playing
	f.stopProcessLocked()
	f.anchor = seconds

	if wasPlaying {
		if err := f.startProcessLocked(seconds); err != nil && err != ErrAborted {
			logger.Warn("failed to restart ffplay after seek", logger.ErrorField(err))
		}
	}
}

// SetVolume stores the native 0.0-1.0 volume. ffplay only reads volume
// at spawn time, so the level applies from the next (re)start.
func (f *FFPlay) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	f.volume = v
}

// Close kills any running subprocess and stops the progress loop.
func (f *FFPlay) Close() error {
	f.mu.Lock()
	f.gen++
	f.stopProcessLocked()
	f.mu.Unlock()
	close(f.done)
	return nil
}

// stopProcessLocked kills the subprocess if one is running. Caller holds f.mu.
func (f *FFPlay) stopProcessLocked() {
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	f.cmd = nil
	f.playing = false
	f.paused = false
}

// progressLoop emits position ticks while playback advances.
func (f *FFPlay) progressLoop() {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if !f.playing {
				f.mu.Unlock()
				continue
			}
			pos := f.anchor + time.Since(f.started).Seconds()
			if f.duration > 0 && pos > f.duration {
				pos = f.duration
			}
			f.mu.Unlock()
			f.emit(Event{Type: EventProgress, Position: pos})
		}
	}
}

// emit delivers an event without ever blocking the backend.
func (f *FFPlay) emit(ev Event) {
	select {
	case f.events <- ev:
	default:
		logger.Debug("dropping backend event, consumer is behind")
	}
}
