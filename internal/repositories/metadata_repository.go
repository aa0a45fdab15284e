package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Divarin/Community-sub002/internal/models"
)

// MetadataRepository abstracts per-user typed blobs (read snapshots, chat
// header formats, notification modes).
type MetadataRepository interface {
	// GetByUserAndType returns all rows for the pair, most recent first.
	GetByUserAndType(ctx context.Context, userID int, t models.MetadataType) ([]models.Metadata, error)
	Insert(ctx context.Context, m models.Metadata) (models.Metadata, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUserAndType(ctx context.Context, userID int, t models.MetadataType) error
}

// MetadataRepo is a sqlx implementation of MetadataRepository.
type MetadataRepo struct {
	db *sqlx.DB
}

// NewMetadataRepo constructs a MetadataRepo.
func NewMetadataRepo(db *sqlx.DB) *MetadataRepo {
	return &MetadataRepo{db: db}
}

// GetByUserAndType returns the rows for (user, type), newest first.
func (r *MetadataRepo) GetByUserAndType(ctx context.Context, userID int, t models.MetadataType) ([]models.Metadata, error) {
	var rows []models.Metadata
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, type, data, created_at
         FROM metadata WHERE user_id=$1 AND type=$2 ORDER BY id DESC`,
		userID, string(t))
	return rows, err
}

// Insert stores a new metadata row.
func (r *MetadataRepo) Insert(ctx context.Context, m models.Metadata) (models.Metadata, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO metadata (user_id, type, data)
         VALUES ($1, $2, $3)
         RETURNING id, user_id, type, data, created_at`,
		m.UserID, string(m.Type), m.Data).
		StructScan(&m)
	return m, err
}

// Delete removes one row.
func (r *MetadataRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE id=$1`, id)
	return err
}

// DeleteByUserAndType removes every row for the pair.
func (r *MetadataRepo) DeleteByUserAndType(ctx context.Context, userID int, t models.MetadataType) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM metadata WHERE user_id=$1 AND type=$2`, userID, string(t))
	return err
}
