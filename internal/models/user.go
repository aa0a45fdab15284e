package models

import "time"

// User is an authenticated account. Password handling lives outside the
// session core; only identity and access level matter here.
type User struct {
	ID                int       `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	IsAdmin           bool      `db:"is_admin" json:"is_admin"`
	IsGlobalModerator bool      `db:"is_global_moderator" json:"is_global_moderator"`
	LastLoginAt       time.Time `db:"last_login_at" json:"last_login_at"`
}
