package bus

import (
	"github.com/google/uuid"

	"github.com/Divarin/Community-sub002/internal/models"
)

// Kind identifies one message variant. The set is closed: every variant
// the bus carries is declared here and subscribers register per kind.
type Kind int

const (
	KindChannel Kind = iota
	KindGlobal
	KindUser
	KindEmote
	KindChannelPost
	KindUserLoginOrOut
	KindNewUserRegistered
	kindCount
)

var kindNames = [...]string{
	"channel",
	"global",
	"user",
	"emote",
	"channel_post",
	"user_login_or_out",
	"new_user_registered",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Message is the payload contract. Origin is the publishing session's id;
// a subscriber registered under the same id never receives the message.
type Message interface {
	Kind() Kind
	Origin() uuid.UUID
}

// ChannelMessage is a notice scoped to one channel (joins, parts, presence
// notes). ModeratorsOnly limits delivery to channel moderators and
// ExcludeDND skips recipients in do-not-disturb mode; subscriber filters
// evaluate both against their own session.
type ChannelMessage struct {
	SessionID      uuid.UUID
	ChannelID      int
	Text           string
	ModeratorsOnly bool
	ExcludeDND     bool
}

func (ChannelMessage) Kind() Kind          { return KindChannel }
func (m ChannelMessage) Origin() uuid.UUID { return m.SessionID }

// GlobalMessage reaches every logged-in session regardless of channel.
type GlobalMessage struct {
	SessionID uuid.UUID
	Text      string
}

func (GlobalMessage) Kind() Kind          { return KindGlobal }
func (m GlobalMessage) Origin() uuid.UUID { return m.SessionID }

// UserMessage targets a single user. Notify is the per-recipient side
// effect; a recipient in do-not-disturb defers it instead of running it.
type UserMessage struct {
	SessionID    uuid.UUID
	TargetUserID int
	Text         string
	Notify       func()
}

func (UserMessage) Kind() Kind          { return KindUser }
func (m UserMessage) Origin() uuid.UUID { return m.SessionID }

// EmoteMessage is a third-person action line within a channel.
type EmoteMessage struct {
	SessionID uuid.UUID
	ChannelID int
	Text      string
}

func (EmoteMessage) Kind() Kind          { return KindEmote }
func (m EmoteMessage) Origin() uuid.UUID { return m.SessionID }

// ChannelPostMessage announces a chat inserted into a channel, carrying
// the stored record so recipients can update their shared cache view.
type ChannelPostMessage struct {
	SessionID uuid.UUID
	Chat      *models.Chat
}

func (ChannelPostMessage) Kind() Kind          { return KindChannelPost }
func (m ChannelPostMessage) Origin() uuid.UUID { return m.SessionID }

// UserLoginOrOutMessage announces presence changes.
type UserLoginOrOutMessage struct {
	SessionID uuid.UUID
	UserID    int
	UserName  string
	LoggedIn  bool
}

func (UserLoginOrOutMessage) Kind() Kind          { return KindUserLoginOrOut }
func (m UserLoginOrOutMessage) Origin() uuid.UUID { return m.SessionID }

// NewUserRegisteredMessage announces a freshly registered account.
type NewUserRegisteredMessage struct {
	SessionID uuid.UUID
	UserID    int
	UserName  string
}

func (NewUserRegisteredMessage) Kind() Kind          { return KindNewUserRegistered }
func (m NewUserRegisteredMessage) Origin() uuid.UUID { return m.SessionID }
