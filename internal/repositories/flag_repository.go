package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Divarin/Community-sub002/internal/models"
)

var ErrFlagNotFound = errors.New("user channel flag not found")

// UserChannelFlagRepository abstracts the per (user, channel) permission
// and read-position records.
type UserChannelFlagRepository interface {
	// GetByUserChannel returns the single logical record for the pair.
	// Duplicate rows are pruned, keeping the one with the highest
	// last-read value.
	GetByUserChannel(ctx context.Context, userID, channelID int) (models.UserChannelFlag, error)
	GetModerators(ctx context.Context, channelID int) ([]models.UserChannelFlag, error)
	InsertOrUpdate(ctx context.Context, f models.UserChannelFlag) (models.UserChannelFlag, error)
}

// UserChannelFlagRepo is a sqlx implementation of
// UserChannelFlagRepository.
type UserChannelFlagRepo struct {
	db *sqlx.DB
}

// NewUserChannelFlagRepo constructs a UserChannelFlagRepo.
func NewUserChannelFlagRepo(db *sqlx.DB) *UserChannelFlagRepo {
	return &UserChannelFlagRepo{db: db}
}

// GetByUserChannel resolves the flag record for the pair, deleting any
// duplicate rows except the one with the highest last-read id.
func (r *UserChannelFlagRepo) GetByUserChannel(ctx context.Context, userID, channelID int) (models.UserChannelFlag, error) {
	var flags []models.UserChannelFlag
	err := r.db.SelectContext(ctx, &flags,
		`SELECT id, user_id, channel_id, flags, last_read_id
         FROM user_channel_flags
         WHERE user_id=$1 AND channel_id=$2
         ORDER BY last_read_id DESC, id DESC`, userID, channelID)
	if err != nil {
		return models.UserChannelFlag{}, err
	}
	if len(flags) == 0 {
		return models.UserChannelFlag{}, ErrFlagNotFound
	}

	keep := flags[0]
	if len(flags) > 1 {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM user_channel_flags
             WHERE user_id=$1 AND channel_id=$2 AND id <> $3`,
			userID, channelID, keep.ID); err != nil {
			return models.UserChannelFlag{}, err
		}
	}
	return keep, nil
}

// GetModerators returns the flag records of every channel moderator.
func (r *UserChannelFlagRepo) GetModerators(ctx context.Context, channelID int) ([]models.UserChannelFlag, error) {
	var flags []models.UserChannelFlag
	err := r.db.SelectContext(ctx, &flags,
		`SELECT id, user_id, channel_id, flags, last_read_id
         FROM user_channel_flags
         WHERE channel_id=$1 AND (flags & $2) = $2`,
		channelID, int(models.FlagModerator))
	return flags, err
}

// InsertOrUpdate upserts the record for (user, channel) and returns the
// stored row.
func (r *UserChannelFlagRepo) InsertOrUpdate(ctx context.Context, f models.UserChannelFlag) (models.UserChannelFlag, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO user_channel_flags (user_id, channel_id, flags, last_read_id)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (user_id, channel_id) DO UPDATE
           SET flags = EXCLUDED.flags, last_read_id = EXCLUDED.last_read_id
         RETURNING id, user_id, channel_id, flags, last_read_id`,
		f.UserID, f.ChannelID, int(f.Flags), f.LastReadID).
		StructScan(&f)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserChannelFlag{}, ErrFlagNotFound
	}
	return f, err
}
