// Package realtime owns the persistent chat connection. It translates
// room-scoped intents into outbound events and fans inbound events into
// broadcast streams any number of views can observe.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/model"
)

// DefaultRoom is used when a caller passes an empty room name.
const DefaultRoom = "general"

// Outbound event names.
const (
	evtJoinRoom          = "join_room"
	evtLeaveRoom         = "leave_room"
	evtSendMessage       = "send_message"
	evtGetMessageHistory = "get_message_history"
	evtTyping            = "typing"
)

// Inbound event names.
const (
	evtStatus           = "status"
	evtNewMessage       = "new_message"
	evtRecentMessages   = "recent_messages"
	evtMessageHistory   = "message_history"
	evtUserJoined       = "user_joined"
	evtUserLeft         = "user_left"
	evtUserDisconnected = "user_disconnected"
	evtUserTyping       = "user_typing"
	evtError            = "error"
)

// Reconnection policy: fixed delay, capped attempt count. Once the
// attempts are exhausted the connected flag stays false for good.
const (
	reconnectDelay    = 2 * time.Second
	reconnectAttempts = 5
)

// Envelope is the wire frame for every chat event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the subset of the websocket connection the session uses.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes a Conn to the chat service.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Session maintains the single chat connection. All emit operations are
// fire-and-forget: the server never acknowledges them directly, effects
// arrive as inbound events.
type Session struct {
	url      string
	dial     Dialer
	clientID string
	delay    time.Duration
	attempts int

	mu       sync.Mutex
	conn     Conn
	room     string // at most one joined room at a time
	messages []model.ChatMessage
	closed   bool

	messagesS  *stream.Subject[[]model.ChatMessage]
	connectedS *stream.Subject[bool]
	presenceS  *stream.Subject[model.PresenceEvent]

	cancel context.CancelFunc
}

// New creates a session and immediately starts connecting to url.
func New(url string, dial Dialer) *Session {
	return newSession(url, dial, reconnectDelay, reconnectAttempts)
}

func newSession(url string, dial Dialer, delay time.Duration, attempts int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		url:        url,
		dial:       dial,
		clientID:   uuid.NewString(),
		delay:      delay,
		attempts:   attempts,
		messagesS:  stream.NewWithValue([]model.ChatMessage(nil)),
		connectedS: stream.NewWithValue(false),
		presenceS:  stream.New[model.PresenceEvent](),
		cancel:     cancel,
	}
	go s.connectLoop(ctx)
	return s
}

// Messages is the room message list stream; replaced wholesale on
// backfill, appended to on live messages.
func (s *Session) Messages() *stream.Subject[[]model.ChatMessage] { return s.messagesS }

// Connected is the connection-flag stream.
func (s *Session) Connected() *stream.Subject[bool] { return s.connectedS }

// Presence is the join/leave/typing notification stream.
func (s *Session) Presence() *stream.Subject[model.PresenceEvent] { return s.presenceS }

// JoinRoom emits a join intent. The server answers asynchronously with a
// recent-message backfill.
func (s *Session) JoinRoom(userID int64, username, room string) {
	s.mu.Lock()
	s.room = orDefault(room)
	s.mu.Unlock()

	s.emit(evtJoinRoom, map[string]any{
		"user_id":   userID,
		"username":  username,
		"room":      orDefault(room),
		"client_id": s.clientID,
	})
}

// LeaveRoom emits a leave intent. Local history is kept until the next
// backfill or an explicit ClearMessages.
func (s *Session) LeaveRoom(userID int64, room string) {
	s.emit(evtLeaveRoom, map[string]any{
		"user_id": userID,
		"room":    orDefault(room),
	})
}

// SendMessage emits a send intent. The message is not appended locally;
// it becomes visible when the server echoes it back as new_message.
func (s *Session) SendMessage(userID int64, username, text, room string) {
	s.emit(evtSendMessage, map[string]any{
		"user_id":  userID,
		"username": username,
		"message":  text,
		"room":     orDefault(room),
	})
}

// SendTypingIndicator emits a transient presence signal.
func (s *Session) SendTypingIndicator(userID int64, room string, isTyping bool) {
	s.emit(evtTyping, map[string]any{
		"user_id":   userID,
		"room":      orDefault(room),
		"is_typing": isTyping,
	})
}

// GetMessageHistory emits a paged history request. The response, when it
// carries a message list, supersedes the current one.
func (s *Session) GetMessageHistory(room string, page, perPage int) {
	s.emit(evtGetMessageHistory, map[string]any{
		"room":     orDefault(room),
		"page":     page,
		"per_page": perPage,
	})
}

// ClearMessages empties the local message list without contacting the server.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	s.messagesS.Publish(nil)
}

// Disconnect tears the connection down. No reconnection is attempted
// after an explicit disconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	s.connectedS.Publish(false)
}

func orDefault(room string) string {
	if room == "" {
		return DefaultRoom
	}
	return room
}

// emit writes one envelope. Failures are logged, never surfaced: the
// only actionable state the UI gets is the connected flag.
func (s *Session) emit(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal chat event", logger.String("event", event), logger.ErrorField(err))
		return
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		logger.Warn("dropping chat event, not connected", logger.String("event", event))
		return
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: payload}); err != nil {
		logger.Warn("failed to send chat event", logger.String("event", event), logger.ErrorField(err))
	}
}

// connectLoop dials, runs the read loop, and retries with a fixed delay
// up to the attempt cap. The counter resets after a successful connect.
func (s *Session) connectLoop(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx, s.url)
		if err != nil {
			attempts++
			logger.Warn("chat connection failed",
				logger.String("url", s.url),
				logger.Int("attempt", attempts),
				logger.ErrorField(err))
			s.connectedS.Publish(false)

			if attempts >= s.attempts {
				logger.Error("chat reconnection attempts exhausted",
					logger.Int("attempts", attempts))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		attempts = 0
		s.connectedS.Publish(true)
		logger.Info("chat connected", logger.String("url", s.url))

		s.readLoop(ctx, conn)

		s.mu.Lock()
		explicit := s.closed
		s.conn = nil
		s.mu.Unlock()

		s.connectedS.Publish(false)
		if explicit {
			return
		}
		logger.Warn("chat connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.delay):
		}
	}
}

// readLoop consumes inbound frames until the connection drops.
func (s *Session) readLoop(ctx context.Context, conn Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("discarding malformed chat frame", logger.ErrorField(err))
			continue
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env Envelope) {
	switch env.Event {
	case evtNewMessage:
		var msg model.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			logger.Warn("discarding malformed new_message", logger.ErrorField(err))
			return
		}
		s.appendMessage(msg)

	case evtRecentMessages, evtMessageHistory:
		var payload model.MessageHistory
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Warn("discarding malformed message backfill",
				logger.String("event", env.Event), logger.ErrorField(err))
			return
		}
		s.replaceMessages(payload.Messages)

	case evtUserJoined, evtUserLeft, evtUserDisconnected:
		s.publishPresence(env)

	case evtUserTyping:
		s.publishPresence(env)

	case evtStatus:
		logger.Debug("chat status", logger.String("payload", string(env.Data)))

	case evtError:
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Warn("chat server error with malformed payload", logger.ErrorField(err))
			return
		}
		logger.Warn("chat server error", logger.String("message", payload.Message))

	default:
		logger.Debug("ignoring unknown chat event", logger.String("event", env.Event))
	}
}

func (s *Session) appendMessage(msg model.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	snapshot := make([]model.ChatMessage, len(s.messages))
	copy(snapshot, s.messages)
	s.mu.Unlock()

	s.messagesS.Publish(snapshot)
}

// replaceMessages installs a server backfill. Live messages that raced
// the backfill are kept: anything currently held for the joined room
// with a server-assigned ID the backfill does not contain is re-appended
// after it. Messages from any other room are discarded.
func (s *Session) replaceMessages(backfill []model.ChatMessage) {
	s.mu.Lock()
	known := make(map[int64]bool, len(backfill))
	for _, msg := range backfill {
		if msg.ID != 0 {
			known[msg.ID] = true
		}
	}

	merged := make([]model.ChatMessage, len(backfill), len(backfill)+4)
	copy(merged, backfill)
	for _, msg := range s.messages {
		if msg.ID != 0 && !known[msg.ID] && msg.Room == s.room {
			merged = append(merged, msg)
		}
	}
	s.messages = merged

	snapshot := make([]model.ChatMessage, len(merged))
	copy(snapshot, merged)
	s.mu.Unlock()

	s.messagesS.Publish(snapshot)
}

func (s *Session) publishPresence(env Envelope) {
	var ev model.PresenceEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		logger.Warn("discarding malformed presence event",
			logger.String("event", env.Event), logger.ErrorField(err))
		return
	}
	ev.Event = env.Event
	s.presenceS.Publish(ev)
}
