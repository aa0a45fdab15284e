package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Divarin/Community-sub002/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	GetByChannel(ctx context.Context, channelID int) ([]models.Chat, error)
	GetByID(ctx context.Context, id int64) (models.Chat, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Chat, error)
	Insert(ctx context.Context, chat models.Chat) (models.Chat, error)
	Delete(ctx context.Context, id int64) error
	DeleteRange(ctx context.Context, channelID int, fromID, toID int64) error
	HighestID(ctx context.Context) (int64, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetByChannel returns all chats of a channel ordered by id.
func (r *ChatRepo) GetByChannel(ctx context.Context, channelID int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT id, channel_id, from_user_id, response_to_id, message, created_at
         FROM chats WHERE channel_id=$1 ORDER BY id`, channelID)
	return chats, err
}

// GetByID fetches one chat.
func (r *ChatRepo) GetByID(ctx context.Context, id int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, channel_id, from_user_id, response_to_id, message, created_at
         FROM chats WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetByIDs fetches the chats with the given ids, ordered by id.
func (r *ChatRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.Chat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT id, channel_id, from_user_id, response_to_id, message, created_at
         FROM chats WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	return chats, err
}

// Insert stores a new chat and returns it with its assigned id.
func (r *ChatRepo) Insert(ctx context.Context, chat models.Chat) (models.Chat, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (channel_id, from_user_id, response_to_id, message)
         VALUES ($1, $2, $3, $4)
         RETURNING id, channel_id, from_user_id, response_to_id, message, created_at`,
		chat.ChannelID, chat.FromUserID, chat.ResponseToID, chat.Message).
		StructScan(&chat)
	return chat, err
}

// Delete removes one chat.
func (r *ChatRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, id)
	return err
}

// DeleteRange removes a contiguous id range within a channel (moderation
// purge).
func (r *ChatRepo) DeleteRange(ctx context.Context, channelID int, fromID, toID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM chats WHERE channel_id=$1 AND id BETWEEN $2 AND $3`,
		channelID, fromID, toID)
	return err
}

// HighestID returns the highest assigned chat id across all channels, or 0
// when no chat exists.
func (r *ChatRepo) HighestID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT COALESCE(MAX(id), 0) FROM chats`)
	return id, err
}
