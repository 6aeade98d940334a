package stream

import (
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
		panic("unreachable")
	}
}

func TestSubject(t *testing.T) {
	t.Run("Replays Latest Value To Late Subscribers", func(t *testing.T) {
		s := New[int]()
		s.Publish(1)
		s.Publish(2)

		ch, cancel := s.Subscribe()
		defer cancel()

		if got := recv(t, ch); got != 2 {
			t.Errorf("expected replayed value 2, got %d", got)
		}
	})

	t.Run("No Replay Before First Publish", func(t *testing.T) {
		s := New[string]()
		ch, cancel := s.Subscribe()
		defer cancel()

		select {
		case v := <-ch:
			t.Errorf("expected no value, got %q", v)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Initial Value", func(t *testing.T) {
		s := NewWithValue(false)
		ch, cancel := s.Subscribe()
		defer cancel()

		if got := recv(t, ch); got != false {
			t.Errorf("expected initial false, got %v", got)
		}
		if v, ok := s.Value(); !ok || v != false {
			t.Errorf("Value() = %v, %v; want false, true", v, ok)
		}
	})

	t.Run("FIFO Order Per Subscriber", func(t *testing.T) {
		s := New[int]()
		ch, cancel := s.Subscribe()
		defer cancel()

		for i := 1; i <= 5; i++ {
			s.Publish(i)
		}
		for i := 1; i <= 5; i++ {
			if got := recv(t, ch); got != i {
				t.Fatalf("expected %d in order, got %d", i, got)
			}
		}
	})

	t.Run("Fan Out To Multiple Subscribers", func(t *testing.T) {
		s := New[int]()
		a, cancelA := s.Subscribe()
		defer cancelA()
		b, cancelB := s.Subscribe()
		defer cancelB()

		s.Publish(7)
		if got := recv(t, a); got != 7 {
			t.Errorf("subscriber a got %d, want 7", got)
		}
		if got := recv(t, b); got != 7 {
			t.Errorf("subscriber b got %d, want 7", got)
		}
	})

	t.Run("Cancel Stops Delivery And Closes Channel", func(t *testing.T) {
		s := New[int]()
		ch, cancel := s.Subscribe()
		cancel()
		cancel() // second call must be harmless

		s.Publish(1)
		if _, ok := <-ch; ok {
			t.Error("expected closed channel after cancel")
		}
	})

	t.Run("Close Ends All Subscriptions", func(t *testing.T) {
		s := New[int]()
		ch, cancel := s.Subscribe()
		defer cancel()

		s.Close()
		if _, ok := <-ch; ok {
			t.Error("expected closed channel after Close")
		}

		s.Publish(9) // must not panic
		if _, ok := s.Value(); ok {
			t.Error("expected no value on never-published closed subject")
		}
	})
}

func TestBag(t *testing.T) {
	s := New[int]()
	var bag Bag

	ch1, cancel1 := s.Subscribe()
	bag.Add(cancel1)
	ch2, cancel2 := s.Subscribe()
	bag.Add(cancel2)

	bag.Close()

	if _, ok := <-ch1; ok {
		t.Error("expected first subscription closed by bag")
	}
	if _, ok := <-ch2; ok {
		t.Error("expected second subscription closed by bag")
	}

	// A second Close must be a no-op.
	bag.Close()
}
