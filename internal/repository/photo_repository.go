package repository

import (
	"context"
	"database/sql"

	"github.com/inspectsync/server/internal/models"
)

// PhotoRepository handles attachment metadata persistence (SQLite)
type PhotoRepository struct {
	db *sql.DB
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Add inserts a new photo record
func (r *PhotoRepository) Add(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO inspection_photos (id, inspection_id, question_id, stored_path, file_name, file_size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		photo.ID,
		photo.InspectionID,
		photo.QuestionID,
		photo.StoragePath,
		photo.FileName,
		photo.FileSize,
		photo.UploadedAt,
	)

	return err
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `
		SELECT id, inspection_id, question_id, stored_path, file_name, file_size, uploaded_at
		FROM inspection_photos WHERE id = ?
	`

	var photo models.Photo
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&photo.ID,
		&photo.InspectionID,
		&photo.QuestionID,
		&photo.StoragePath,
		&photo.FileName,
		&photo.FileSize,
		&photo.UploadedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &photo, nil
}

// ListByInspection returns all photos attached to an inspection, oldest first
func (r *PhotoRepository) ListByInspection(ctx context.Context, inspectionID string) ([]*models.Photo, error) {
	query := `
		SELECT id, inspection_id, question_id, stored_path, file_name, file_size, uploaded_at
		FROM inspection_photos
		WHERE inspection_id = ?
		ORDER BY uploaded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPhotos(rows)
}

// CountByQuestion returns how many photos one checklist item already carries
func (r *PhotoRepository) CountByQuestion(ctx context.Context, inspectionID, questionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inspection_photos WHERE inspection_id = ? AND question_id = ?`,
		inspectionID, questionID,
	).Scan(&count)
	return count, err
}

// Delete removes a photo record by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM inspection_photos WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func collectPhotos(rows *sql.Rows) ([]*models.Photo, error) {
	photos := []*models.Photo{}
	for rows.Next() {
		var photo models.Photo
		if err := rows.Scan(
			&photo.ID,
			&photo.InspectionID,
			&photo.QuestionID,
			&photo.StoragePath,
			&photo.FileName,
			&photo.FileSize,
			&photo.UploadedAt,
		); err != nil {
			return nil, err
		}
		photos = append(photos, &photo)
	}
	return photos, rows.Err()
}
