package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Divarin/Community-sub002/internal/models"
)

var ErrChannelNotFound = errors.New("channel not found")

// ChannelRepository abstracts channel persistence.
type ChannelRepository interface {
	GetAll(ctx context.Context) ([]models.Channel, error)
	GetByID(ctx context.Context, id int) (models.Channel, error)
	GetByName(ctx context.Context, name string) (models.Channel, error)
	Insert(ctx context.Context, ch models.Channel) (models.Channel, error)
	Update(ctx context.Context, ch models.Channel) error
}

// ChannelRepo is a sqlx implementation of ChannelRepository.
type ChannelRepo struct {
	db *sqlx.DB
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sqlx.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// GetAll returns every channel ordered by name.
func (r *ChannelRepo) GetAll(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels,
		`SELECT id, name, requires_invite, requires_voice, created_at
         FROM channels ORDER BY name`)
	return channels, err
}

// GetByID fetches one channel.
func (r *ChannelRepo) GetByID(ctx context.Context, id int) (models.Channel, error) {
	var ch models.Channel
	err := r.db.GetContext(ctx, &ch,
		`SELECT id, name, requires_invite, requires_voice, created_at
         FROM channels WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return ch, err
}

// GetByName fetches a channel by its unique name, case-insensitively.
func (r *ChannelRepo) GetByName(ctx context.Context, name string) (models.Channel, error) {
	var ch models.Channel
	err := r.db.GetContext(ctx, &ch,
		`SELECT id, name, requires_invite, requires_voice, created_at
         FROM channels WHERE LOWER(name)=LOWER($1)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return ch, err
}

// Insert stores a new channel and returns it with its assigned id.
func (r *ChannelRepo) Insert(ctx context.Context, ch models.Channel) (models.Channel, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO channels (name, requires_invite, requires_voice)
         VALUES ($1, $2, $3)
         RETURNING id, name, requires_invite, requires_voice, created_at`,
		ch.Name, ch.RequiresInvite, ch.RequiresVoice).
		StructScan(&ch)
	return ch, err
}

// Update rewrites a channel's flags.
func (r *ChannelRepo) Update(ctx context.Context, ch models.Channel) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE channels SET requires_invite=$2, requires_voice=$3 WHERE id=$1`,
		ch.ID, ch.RequiresInvite, ch.RequiresVoice)
	return err
}
