package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inspectsync/server/internal/models"
)

// InspectionRepository handles inspection persistence (SQLite)
type InspectionRepository struct {
	db *sql.DB
}

// NewInspectionRepository creates a new InspectionRepository
func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `id, facility_id, account_id, team_number, template_id, inspector_name,
	conducted_at, responses, general_comments, signature_data, status, flagged_count, actions_count, updated_at`

// Create inserts a new inspection record
func (r *InspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	responses, err := encodeResponses(inspection.Responses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO inspections (` + inspectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

// Update overwrites the full record by id. Identity columns never change.
func (r *InspectionRepository) Update(ctx context.Context, inspection *models.Inspection) error {
	responses, err := encodeResponses(inspection.Responses)
	if err != nil {
		return err
	}

	query := `
		UPDATE inspections
		SET responses = ?, general_comments = ?, signature_data = ?, status = ?,
			inspector_name = ?, flagged_count = ?, actions_count = ?, updated_at = ?
		WHERE id = ?
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
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = ?`
	return scanInspection(r.db.QueryRowContext(ctx, query, id))
}

// FindDraft returns the open draft for a facility, or nil when none exists
func (r *InspectionRepository) FindDraft(ctx context.Context, facilityID, accountID string) (*models.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + ` FROM inspections
		WHERE facility_id = ? AND account_id = ? AND status = 'draft'
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanInspection(r.db.QueryRowContext(ctx, query, facilityID, accountID))
}

// ListByFacility returns the most recent inspections for a facility
func (r *InspectionRepository) ListByFacility(ctx context.Context, facilityID, accountID string, limit int) ([]*models.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + ` FROM inspections
		WHERE facility_id = ? AND account_id = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, facilityID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInspections(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInspection(row rowScanner) (*models.Inspection, error) {
	var insp models.Inspection
	var responses string
	var teamNumber, inspectorName, signatureData sql.NullString
	var status string

	err := row.Scan(
		&insp.ID,
		&insp.FacilityID,
		&insp.AccountID,
		&teamNumber,
		&insp.TemplateID,
		&inspectorName,
		&insp.ConductedAt,
		&responses,
		&insp.GeneralNotes,
		&signatureData,
		&status,
		&insp.FlaggedCount,
		&insp.ActionsCount,
		&insp.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	insp.TeamNumber = teamNumber.String
	insp.InspectorName = inspectorName.String
	insp.SignatureData = signatureData.String
	insp.Status = models.InspectionStatus(status)

	if err := json.Unmarshal([]byte(responses), &insp.Responses); err != nil {
		return nil, fmt.Errorf("failed to decode stored responses for inspection %s: %w", insp.ID, err)
	}

	return &insp, nil
}

func collectInspections(rows *sql.Rows) ([]*models.Inspection, error) {
	inspections := []*models.Inspection{}
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		inspections = append(inspections, insp)
	}
	return inspections, rows.Err()
}

func encodeResponses(responses []*models.Response) (string, error) {
	data, err := json.Marshal(responses)
	if err != nil {
		return "", fmt.Errorf("failed to encode responses: %w", err)
	}
	return string(data), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
