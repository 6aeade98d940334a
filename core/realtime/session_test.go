package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamfm/model"
)

// fakeConn is an in-memory Conn the tests drive from the server side.
type fakeConn struct {
	inbound chan []byte
	writes  chan Envelope
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan Envelope, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	env, ok := v.(Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	c.writes <- env
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// push delivers a server event to the client.
func (c *fakeConn) push(t *testing.T, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		t.Fatal(err)
	}
	c.inbound <- frame
}

// nextWrite returns the next outbound envelope, failing on timeout.
func (c *fakeConn) nextWrite(t *testing.T) Envelope {
	t.Helper()
	select {
	case env := <-c.writes:
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound event")
		panic("unreachable")
	}
}

func dialTo(conn *fakeConn, dials *atomic.Int32) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		dials.Add(1)
		return conn, nil
	}
}

func startSession(t *testing.T, conn *fakeConn) *Session {
	t.Helper()
	var dials atomic.Int32
	s := newSession("ws://test/socket", dialTo(conn, &dials), 10*time.Millisecond, 3)
	t.Cleanup(s.Disconnect)
	awaitConnected(t, s, true)
	return s
}

func awaitConnected(t *testing.T, s *Session, want bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := s.Connected().Value(); ok && v == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for connected=%v", want)
}

func awaitMessageCount(t *testing.T, s *Session, want int) []model.ChatMessage {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if msgs, _ := s.Messages().Value(); len(msgs) == want {
			return msgs
		}
		time.Sleep(2 * time.Millisecond)
	}
	msgs, _ := s.Messages().Value()
	t.Fatalf("timed out waiting for %d messages, have %d", want, len(msgs))
	return nil
}

// awaitFirstMessageID waits until the list has converged on a new head
// message, for scenarios where the length alone cannot distinguish the
// pre-dispatch list from the post-dispatch one.
func awaitFirstMessageID(t *testing.T, s *Session, id int64) []model.ChatMessage {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if msgs, _ := s.Messages().Value(); len(msgs) > 0 && msgs[0].ID == id {
			return msgs
		}
		time.Sleep(2 * time.Millisecond)
	}
	msgs, _ := s.Messages().Value()
	t.Fatalf("timed out waiting for first message id %d, have %v", id, msgs)
	return nil
}

func TestSessionConnects(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)

	if v, _ := s.Connected().Value(); !v {
		t.Error("expected connected=true after dial")
	}
}

func TestJoinRoomDefaultsRoom(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)

	s.JoinRoom(1, "alice", "")
	env := conn.nextWrite(t)
	if env.Event != "join_room" {
		t.Fatalf("event = %q, want join_room", env.Event)
	}

	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["room"] != "general" {
		t.Errorf("room = %v, want general", data["room"])
	}
	if data["username"] != "alice" {
		t.Errorf("username = %v, want alice", data["username"])
	}
}

func TestSendMessageIsNotAppendedLocally(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)
	s.JoinRoom(1, "alice", "general")
	conn.nextWrite(t) // join_room

	s.SendMessage(1, "alice", "hi", "general")
	env := conn.nextWrite(t)
	if env.Event != "send_message" {
		t.Fatalf("event = %q, want send_message", env.Event)
	}
	if msgs, _ := s.Messages().Value(); len(msgs) != 0 {
		t.Fatalf("expected no local append before echo, have %d messages", len(msgs))
	}

	// Only the server echo makes the message visible.
	conn.push(t, "new_message", model.ChatMessage{
		ID: 10, UserID: 1, Username: "alice", Message: "hi", Room: "general",
	})
	msgs := awaitMessageCount(t, s, 1)
	if msgs[0].Message != "hi" {
		t.Errorf("message = %q, want hi", msgs[0].Message)
	}
}

func TestBackfillReplacesMessages(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)
	s.JoinRoom(1, "alice", "general")
	conn.nextWrite(t)

	conn.push(t, "new_message", model.ChatMessage{ID: 1, Message: "old", Room: "general"})
	awaitMessageCount(t, s, 1)

	conn.push(t, "recent_messages", model.MessageHistory{Messages: []model.ChatMessage{
		{ID: 1, Message: "old", Room: "general"},
		{ID: 2, Message: "older", Room: "general"},
	}})
	msgs := awaitMessageCount(t, s, 2)
	if msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Errorf("backfill order = %v, want server order", msgs)
	}
}

func TestBackfillKeepsRacedLiveMessage(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)
	s.JoinRoom(1, "alice", "general")
	conn.nextWrite(t)

	// A live message lands between the history request and its response.
	conn.push(t, "new_message", model.ChatMessage{ID: 30, Message: "raced", Room: "general"})
	awaitMessageCount(t, s, 1)

	conn.push(t, "message_history", model.MessageHistory{Messages: []model.ChatMessage{
		{ID: 10, Message: "page one", Room: "general"},
	}})
	msgs := awaitMessageCount(t, s, 2)
	if msgs[0].ID != 10 {
		t.Errorf("first message id = %d, want backfill first", msgs[0].ID)
	}
	if msgs[1].ID != 30 {
		t.Errorf("raced live message lost, got %v", msgs)
	}
}

func TestBackfillDropsOtherRoomMessages(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)
	s.JoinRoom(1, "alice", "general")
	conn.nextWrite(t)

	conn.push(t, "new_message", model.ChatMessage{ID: 5, Message: "in general", Room: "general"})
	awaitMessageCount(t, s, 1)

	s.JoinRoom(1, "alice", "jazz")
	conn.nextWrite(t)
	conn.push(t, "recent_messages", model.MessageHistory{Messages: []model.ChatMessage{
		{ID: 7, Message: "in jazz", Room: "jazz"},
	}})

	// The list holds one message both before and after the backfill
	// lands, so wait for the content to change hands.
	msgs := awaitFirstMessageID(t, s, 7)
	if len(msgs) != 1 {
		t.Errorf("expected only the jazz backfill, got %v", msgs)
	}
	if msgs[0].Room != "jazz" {
		t.Errorf("stale general message survived the room switch, got %v", msgs)
	}
}

func TestClearMessages(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)

	conn.push(t, "new_message", model.ChatMessage{ID: 1, Message: "x", Room: "general"})
	awaitMessageCount(t, s, 1)

	s.ClearMessages()
	awaitMessageCount(t, s, 0)
}

func TestPresenceEvents(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn)

	ch, cancel := s.Presence().Subscribe()
	defer cancel()

	conn.push(t, "user_typing", map[string]any{"user_id": 2, "room": "general", "is_typing": true})
	select {
	case ev := <-ch:
		if ev.Event != "user_typing" || ev.UserID != 2 || !ev.IsTyping {
			t.Errorf("presence event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for presence event")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}
	var dials atomic.Int32

	s := newSession("ws://test/socket", func(ctx context.Context, url string) (Conn, error) {
		n := dials.Add(1)
		if int(n) > len(conns) {
			return nil, errors.New("no more conns")
		}
		return conns[n-1], nil
	}, 5*time.Millisecond, 3)
	defer s.Disconnect()

	awaitConnected(t, s, true)
	first.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && dials.Load() < 2 {
		time.Sleep(2 * time.Millisecond)
	}
	if dials.Load() < 2 {
		t.Fatal("expected a reconnect dial after drop")
	}
	awaitConnected(t, s, true)
}

func TestReconnectExhaustionLeavesFlagFalse(t *testing.T) {
	var dials atomic.Int32
	s := newSession("ws://test/socket", func(ctx context.Context, url string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	}, time.Millisecond, 3)
	defer s.Disconnect()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && dials.Load() < 3 {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if got := dials.Load(); got != 3 {
		t.Errorf("dial attempts = %d, want exactly 3", got)
	}
	if v, _ := s.Connected().Value(); v {
		t.Error("expected connected=false after exhaustion")
	}
}

func TestExplicitDisconnectStopsReconnection(t *testing.T) {
	conn := newFakeConn()
	var dials atomic.Int32
	s := newSession("ws://test/socket", dialTo(conn, &dials), time.Millisecond, 5)

	awaitConnected(t, s, true)
	s.Disconnect()
	awaitConnected(t, s, false)

	before := dials.Load()
	time.Sleep(30 * time.Millisecond)
	if after := dials.Load(); after != before {
		t.Errorf("dials after explicit disconnect: %d -> %d, want unchanged", before, after)
	}

	// Emits after disconnect are dropped, not sent.
	s.SendMessage(1, "alice", "late", "general")
	select {
	case env := <-conn.writes:
		t.Errorf("unexpected outbound event %q after disconnect", env.Event)
	case <-time.After(20 * time.Millisecond):
	}
}
