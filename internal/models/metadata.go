package models

import "time"

// MetadataType names the kinds of per-user persisted blobs.
type MetadataType string

const (
	MetaReadMessages     MetadataType = "read_messages"      // compressed JSON set of chat ids
	MetaChatHeaderFormat MetadataType = "chat_header_format" // per-user chat header template
	MetaNotificationMode MetadataType = "notification_mode"  // cross-channel notification preference
)

// Metadata is a per-user typed blob. Duplicate rows for one (user, type)
// are pruned by lookup, keeping only the most recent.
type Metadata struct {
	ID        int64        `db:"id" json:"id"`
	UserID    int          `db:"user_id" json:"user_id"`
	Type      MetadataType `db:"type" json:"type"`
	Data      []byte       `db:"data" json:"data"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// Notification is a stored offline message for a user.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	Seen      bool      `db:"seen" json:"seen"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LogEntry records a session-level audit event, such as a termination and
// its reason.
type LogEntry struct {
	ID        int64     `db:"id" json:"id"`
	UserID    *int      `db:"user_id" json:"user_id,omitempty"`
	SessionID string    `db:"session_id" json:"session_id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
