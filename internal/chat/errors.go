package chat

import "errors"

var (
	// ErrAuthorizationDenied means the user may not post in the channel
	// (no moderator rights and no voice where voice is required).
	ErrAuthorizationDenied = errors.New("you do not have permission to post in this channel")

	// ErrChannelAccessDenied means the channel requires an invitation the
	// user does not hold.
	ErrChannelAccessDenied = errors.New("this channel requires an invitation")

	// ErrInvalidChannelName covers empty, whitespace-containing, too-long,
	// and reserved names.
	ErrInvalidChannelName = errors.New("invalid channel name")

	// ErrNoChannel means the operation needs a current channel and the
	// session has not joined one.
	ErrNoChannel = errors.New("no current channel")
)
