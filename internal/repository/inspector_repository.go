package repository

import (
	"context"
	"database/sql"

	"github.com/inspectsync/server/internal/models"
)

// InspectorRepository stores field-user identities (SQLite)
type InspectorRepository struct {
	db *sql.DB
}

// NewInspectorRepository creates a new InspectorRepository
func NewInspectorRepository(db *sql.DB) *InspectorRepository {
	return &InspectorRepository{db: db}
}

const inspectorColumns = `id, account_id, name, email, api_key, api_key_hash, pin_hash, created_at, is_active`

// Create inserts a new inspector
func (r *InspectorRepository) Create(ctx context.Context, inspector *models.Inspector) error {
	query := `
		INSERT INTO inspectors (` + inspectorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		inspector.ID,
		inspector.AccountID,
		inspector.Name,
		inspector.Email,
		inspector.APIKey,
		inspector.APIKeyHash,
		inspector.PINHash,
		inspector.CreatedAt,
		inspector.IsActive,
	)

	return err
}

// GetByID retrieves an inspector by id
func (r *InspectorRepository) GetByID(ctx context.Context, id string) (*models.Inspector, error) {
	query := `SELECT ` + inspectorColumns + ` FROM inspectors WHERE id = ?`
	return scanInspector(r.db.QueryRowContext(ctx, query, id))
}

// GetByAPIKeyHash retrieves an active inspector by the SHA256 hash of their key
func (r *InspectorRepository) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Inspector, error) {
	query := `SELECT ` + inspectorColumns + ` FROM inspectors WHERE api_key_hash = ? AND is_active = 1`
	return scanInspector(r.db.QueryRowContext(ctx, query, apiKeyHash))
}

// UpdatePINHash replaces the signing PIN hash for an inspector
func (r *InspectorRepository) UpdatePINHash(ctx context.Context, id, pinHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE inspectors SET pin_hash = ? WHERE id = ?`, pinHash, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrInspectorNotFound
	}
	return nil
}

func scanInspector(row rowScanner) (*models.Inspector, error) {
	var insp models.Inspector
	var email sql.NullString

	err := row.Scan(
		&insp.ID,
		&insp.AccountID,
		&insp.Name,
		&email,
		&insp.APIKey,
		&insp.APIKeyHash,
		&insp.PINHash,
		&insp.CreatedAt,
		&insp.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	insp.Email = email.String
	return &insp, nil
}
