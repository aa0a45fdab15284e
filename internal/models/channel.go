package models

import "time"

// Channel is a named room of messages.
type Channel struct {
	ID             int       `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	RequiresInvite bool      `db:"requires_invite" json:"requires_invite"`
	RequiresVoice  bool      `db:"requires_voice" json:"requires_voice"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ChannelFlags is the per-user permission bitmask on a channel.
type ChannelFlags int

const (
	FlagInvited   ChannelFlags = 1 << iota // may enter invite-only channels
	FlagModerator                          // may always post, sees voice requests
	FlagVoice                              // may post in voice-required channels
)

// Has reports whether all bits in f are set.
func (c ChannelFlags) Has(f ChannelFlags) bool {
	return c&f == f
}

// UserChannelFlag is the persisted (user, channel) record: permission bits
// plus the last-read message id. Logically one row per pair; lookups prune
// duplicates keeping the row with the highest last-read value.
type UserChannelFlag struct {
	ID         int64        `db:"id" json:"id"`
	UserID     int          `db:"user_id" json:"user_id"`
	ChannelID  int          `db:"channel_id" json:"channel_id"`
	Flags      ChannelFlags `db:"flags" json:"flags"`
	LastReadID int64        `db:"last_read_id" json:"last_read_id"`
}
