package player

import "errors"

// ErrAborted is returned by Backend.Play when a start request was
// superseded by a near-simultaneous source change. The engine treats it
// as benign and swallows it.
var ErrAborted = errors.New("playback aborted by source change")

// EventType identifies an asynchronous notification from the audio backend.
type EventType int

const (
	// EventMetadata fires once the media metadata is known.
	EventMetadata EventType = iota
	// EventProgress fires periodically while playback advances.
	EventProgress
	// EventEnded fires on natural end of media.
	EventEnded
	// EventError fires when the media failed to load or play.
	EventError
)

// Event is a notification emitted by a Backend.
type Event struct {
	Type     EventType
	Duration float64 // seconds, set on EventMetadata
	Position float64 // seconds, set on EventProgress
	Err      error   // set on EventError
}

// Backend abstracts the single underlying audio resource. Exactly one
// source is loaded at a time; setting a new source supersedes whatever
// was playing. Implementations deliver Events in the order they occur.
type Backend interface {
	// SetSource loads url as the resource's only source and starts the
	// load. Metadata is reported asynchronously via EventMetadata.
	SetSource(url string) error
	// Play starts or resumes playback. It returns once playback has
	// begun, ErrAborted if superseded by a source change, or the
	// underlying failure.
	Play() error
	// Pause halts playback, keeping the current position. Idempotent.
	Pause()
	// Seek jumps to the given position in seconds.
	Seek(seconds float64)
	// SetVolume sets the native volume in the 0.0-1.0 range.
	SetVolume(v float64)
	// Events returns the backend's notification channel.
	Events() <-chan Event
	// Close releases the resource.
	Close() error
}
