package repository

import (
	"context"
	"database/sql"

	"github.com/inspectsync/server/internal/models"
)

// InspectionRepositoryPostgres handles inspection persistence for PostgreSQL
type InspectionRepositoryPostgres struct {
	db *sql.DB
}

// NewInspectionRepositoryPostgres creates a new InspectionRepositoryPostgres
func NewInspectionRepositoryPostgres(db *sql.DB) *InspectionRepositoryPostgres {
	return &InspectionRepositoryPostgres{db: db}
}

// Create inserts a new inspection record
func (r *InspectionRepositoryPostgres) Create(ctx context.Context, inspection *models.Inspection) error {
	responses, err := encodeResponses(inspection.Responses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO inspections (` + inspectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		inspection.ID,
		inspection.FacilityID,
		inspection.AccountID,
		inspection.TeamNumber,
		inspection.TemplateID,
		inspection.InspectorName,
		inspection.ConductedAt,
		responses,
		inspection.GeneralNotes,
		nullable(inspection.SignatureData),
		string(inspection.Status),
		inspection.FlaggedCount,
		inspection.ActionsCount,
		inspection.UpdatedAt,
	)

	return err
}

// Update overwrites the full record by id
func (r *InspectionRepositoryPostgres) Update(ctx context.Context, inspection *models.Inspection) error {
	responses, err := encodeResponses(inspection.Responses)
	if err != nil {
		return err
	}

	query := `
		UPDATE inspections
		SET responses = $1, general_comments = $2, signature_data = $3, status = $4,
			inspector_name = $5, flagged_count = $6, actions_count = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		responses,
		inspection.GeneralNotes,
		nullable(inspection.SignatureData),
		string(inspection.Status),
		inspection.InspectorName,
		inspection.FlaggedCount,
		inspection.ActionsCount,
		inspection.UpdatedAt,
		inspection.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrInspectionNotFound
	}
	return nil
}

// GetByID retrieves an inspection by its ID
func (r *InspectionRepositoryPostgres) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1`
	return scanInspection(r.db.QueryRowContext(ctx, query, id))
}

// FindDraft returns the open draft for a facility, or nil when none exists
func (r *InspectionRepositoryPostgres) FindDraft(ctx context.Context, facilityID, accountID string) (*models.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + ` FROM inspections
		WHERE facility_id = $1 AND account_id = $2 AND status = 'draft'
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanInspection(r.db.QueryRowContext(ctx, query, facilityID, accountID))
}

// ListByFacility returns the most recent inspections for a facility
func (r *InspectionRepositoryPostgres) ListByFacility(ctx context.Context, facilityID, accountID string, limit int) ([]*models.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + ` FROM inspections
		WHERE facility_id = $1 AND account_id = $2
		ORDER BY updated_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, facilityID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInspections(rows)
}
