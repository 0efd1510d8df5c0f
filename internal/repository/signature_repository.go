package repository

import (
	"context"
	"database/sql"

	"github.com/inspectsync/server/internal/models"
)

// SignatureRepository stores signing credentials (SQLite)
type SignatureRepository struct {
	db *sql.DB
}

// NewSignatureRepository creates a new SignatureRepository
func NewSignatureRepository(db *sql.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Get retrieves the signature for an (account, user) pair, nil when absent
func (r *SignatureRepository) Get(ctx context.Context, accountID, userID string) (*models.Signature, error) {
	query := `
		SELECT account_id, user_id, inspector_name, signature_data, updated_at
		FROM signatures WHERE account_id = ? AND user_id = ?
	`

	var sig models.Signature
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(
		&sig.AccountID,
		&sig.UserID,
		&sig.InspectorName,
		&sig.SignatureData,
		&sig.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &sig, nil
}

// Upsert writes the signature for its (account, user) pair
func (r *SignatureRepository) Upsert(ctx context.Context, signature *models.Signature) error {
	query := `
		INSERT INTO signatures (account_id, user_id, inspector_name, signature_data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, user_id) DO UPDATE SET
			inspector_name = excluded.inspector_name,
			signature_data = excluded.signature_data,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		signature.AccountID,
		signature.UserID,
		signature.InspectorName,
		signature.SignatureData,
		signature.UpdatedAt,
	)

	return err
}
