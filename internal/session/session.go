package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/chatcache"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/terminal"
	"github.com/Divarin/Community-sub002/internal/transport"
)

// Item keys for the per-session transient store.
const (
	ItemReadIDs          = "read_ids"
	ItemChatHeaderFormat = "chat_header_format"
	ItemNotificationMode = "notification_mode"
)

// Limits carries the per-session timing configuration.
type Limits struct {
	LoginTimeout time.Duration
	IdleTimeout  time.Duration
	AfkAfter     time.Duration
}

// Session is one connected client. It is owned by its connection
// goroutine; the registry and the bus hold non-owning references. Created
// on accept, disposed exactly once on disconnect, forced logout, or idle
// timeout.
type Session struct {
	id   uuid.UUID
	conn transport.Conn
	term terminal.Terminal
	bus  *bus.Bus
	log  *zap.Logger

	limits Limits

	mu           sync.Mutex
	state        State
	user         *models.User
	channel      *models.Channel
	channelFlag  *models.UserChannelFlag
	chats        *chatcache.ChannelChats
	msgPointer   int64
	reverse      bool
	lastMsgPtr   int64
	afk          bool
	afkReason    string
	forced       bool
	forcedReason string
	connectedAt  time.Time
	lastActivity time.Time
	authDeadline time.Time

	dnd             bool
	deferred        []func()
	suppressSummary bool

	itemsMu sync.RWMutex
	items   map[string]any

	subsMu sync.Mutex
	subs   []*bus.Subscriber

	hb heartbeat

	disposeMu sync.Mutex
	disposed  bool
	onDispose []func()
}

// New builds a session in the Connecting state.
func New(conn transport.Conn, term terminal.Terminal, b *bus.Bus, limits Limits, log *zap.Logger) *Session {
	now := time.Now().UTC()
	id := uuid.New()
	return &Session{
		id:           id,
		conn:         conn,
		term:         term,
		bus:          b,
		log:          log.With(zap.String("session_id", id.String())),
		limits:       limits,
		state:        StateConnecting,
		connectedAt:  now,
		lastActivity: now,
		authDeadline: now.Add(limits.LoginTimeout),
		items:        make(map[string]any),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() uuid.UUID { return s.id }

// Terminal returns the session's output collaborator.
func (s *Session) Terminal() terminal.Terminal { return s.term }

// Conn returns the underlying transport.
func (s *Session) Conn() transport.Conn { return s.conn }

// RemoteHost returns the peer host for per-address admission limits.
func (s *Session) RemoteHost() string { return s.conn.RemoteHost() }

// User returns the authenticated user, or nil before login completes.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser records a completed login and moves the session to Active.
func (s *Session) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if s.state == StateConnecting || s.state == StateAuthenticating {
		s.state = StateActive
	}
}

// BeginAuth moves the session into the Authenticating state; the login
// deadline was fixed at accept time.
func (s *Session) BeginAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateAuthenticating
	}
}

// Channel returns the session's current channel, or nil before the first
// join.
func (s *Session) Channel() *models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// ChannelFlag returns the session's flag record for its current channel.
func (s *Session) ChannelFlag() *models.UserChannelFlag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelFlag
}

// Chats returns the shared cache view of the current channel.
func (s *Session) Chats() *chatcache.ChannelChats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chats
}

// SetChannel swaps the channel, its flag record, the shared cache
// reference, and the message pointer in one step, so concurrent readers
// never observe a half-switched session.
func (s *Session) SetChannel(ch *models.Channel, flag *models.UserChannelFlag, chats *chatcache.ChannelChats, pointer int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = ch
	s.channelFlag = flag
	s.chats = chats
	s.msgPointer = pointer
}

// MsgPointer returns the current message cursor.
func (s *Session) MsgPointer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgPointer
}

// SetMsgPointer moves the message cursor.
func (s *Session) SetMsgPointer(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgPointer = v
}

// Reverse reports whether pointer resolution runs backwards.
func (s *Session) Reverse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reverse
}

// SetReverse flips the pointer direction.
func (s *Session) SetReverse(r bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverse = r
}

// LastMsgPointer returns the running end-of-channel bookmark.
func (s *Session) LastMsgPointer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMsgPtr
}

// SetLastMsgPointer advances the end-of-channel bookmark.
func (s *Session) SetLastMsgPointer(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsgPtr = v
}

// Item reads a transient store entry.
func (s *Session) Item(key string) (any, bool) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// SetItem writes a transient store entry.
func (s *Session) SetItem(key string, v any) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	s.items[key] = v
}

// MarkActivity records client input for idle and AFK computation.
func (s *Session) MarkActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now().UTC()
	s.afk = false
	s.afkReason = ""
}

// IdleFor reports how long the client has been silent.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// SetAfk marks the session away with an optional reason.
func (s *Session) SetAfk(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afk = true
	s.afkReason = reason
}

// Afk reports the explicit away flag and its reason.
func (s *Session) Afk() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.afk, s.afkReason
}

// Idle reports whether the session passed the AFK threshold without an
// explicit away flag.
func (s *Session) Idle() bool {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()
	return time.Since(last) >= s.limits.AfkAfter
}

// Subscribe registers a bus subscriber on the session's behalf and
// remembers it for disposal.
func (s *Session) Subscribe(sub *bus.Subscriber) {
	sub.SessionID = s.id
	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()
	s.bus.Subscribe(sub)
}

// Bus returns the process bus.
func (s *Session) Bus() *bus.Bus { return s.bus }

// OnDispose registers a hook invoked exactly once during disposal. The
// registry uses this to drop its membership reference.
func (s *Session) OnDispose(fn func()) {
	s.disposeMu.Lock()
	if s.disposed {
		s.disposeMu.Unlock()
		fn()
		return
	}
	s.onDispose = append(s.onDispose, fn)
	s.disposeMu.Unlock()
}

// Disposed reports whether Dispose has run. Liveness and heartbeat loops
// poll this to exit cooperatively.
func (s *Session) Disposed() bool {
	s.disposeMu.Lock()
	defer s.disposeMu.Unlock()
	return s.disposed
}

// Dispose tears the session down: every bus subscription is removed, the
// registered hooks run, the heartbeat loop is signalled, and the transport
// is closed. Safe to call more than once and concurrently with the
// background loops.
func (s *Session) Dispose() {
	s.disposeMu.Lock()
	if s.disposed {
		s.disposeMu.Unlock()
		return
	}
	s.disposed = true
	hooks := s.onDispose
	s.onDispose = nil
	s.disposeMu.Unlock()

	s.mu.Lock()
	s.state = StateDisposed
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()
	for _, sub := range subs {
		s.bus.Unsubscribe(sub)
	}

	s.stopHeartbeat()

	for _, fn := range hooks {
		fn()
	}

	_ = s.conn.Close()
	s.log.Info("session disposed")
}
