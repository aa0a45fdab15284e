package models

import "time"

// Chat is a single message posted into a channel. Ids are assigned by
// storage and strictly increase across all channels, which gives the
// pointer protocol a global order to walk.
type Chat struct {
	ID           int64     `db:"id" json:"id"`
	ChannelID    int       `db:"channel_id" json:"channel_id"`
	FromUserID   int       `db:"from_user_id" json:"from_user_id"`
	ResponseToID *int64    `db:"response_to_id" json:"response_to_id,omitempty"`
	Message      string    `db:"message" json:"message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
