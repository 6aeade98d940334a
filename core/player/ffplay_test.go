package player

import "testing"

// These tests swap the ffprobe binary for echo: the command exits zero
// but prints its own arguments, so the duration never parses.
func TestProbeParseFailure(t *testing.T) {
	t.Run("reports the error for the current source", func(t *testing.T) {
		f := NewFFPlay("ffplay", "echo")
		defer f.Close()

		f.mu.Lock()
		gen := f.gen
		f.mu.Unlock()
		f.probe("song.mp3", gen)

		select {
		case ev := <-f.Events():
			if ev.Type != EventError || ev.Err == nil {
				t.Errorf("expected an error event, got %+v", ev)
			}
		default:
			t.Fatal("no event after a failed duration parse")
		}
	})

	t.Run("stays silent once the source moved on", func(t *testing.T) {
		f := NewFFPlay("ffplay", "echo")
		defer f.Close()

		f.mu.Lock()
		f.gen = 5
		f.mu.Unlock()
		f.probe("song.mp3", 4)

		select {
		case ev := <-f.Events():
			t.Errorf("superseded probe leaked an event: %+v", ev)
		default:
		}
	})
}
