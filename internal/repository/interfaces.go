package repository

import (
	"context"

	"github.com/inspectsync/server/internal/models"
)

// InspectionRepo is the authoritative store for inspection records. One draft
// exists per (facility, account) at a time; saves are full-record overwrites.
type InspectionRepo interface {
	Create(ctx context.Context, inspection *models.Inspection) error
	Update(ctx context.Context, inspection *models.Inspection) error
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	// FindDraft returns the open draft for a facility, or nil when none exists
	FindDraft(ctx context.Context, facilityID, accountID string) (*models.Inspection, error)
	ListByFacility(ctx context.Context, facilityID, accountID string, limit int) ([]*models.Inspection, error)
}

// PhotoRepo catalogs photo attachments against inspection rows
type PhotoRepo interface {
	Add(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	ListByInspection(ctx context.Context, inspectionID string) ([]*models.Photo, error)
	CountByQuestion(ctx context.Context, inspectionID, questionID string) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// TemplateRepo reads checklist templates; the engine never writes them
type TemplateRepo interface {
	GetByName(ctx context.Context, name string) (*models.Template, error)
	GetByID(ctx context.Context, id string) (*models.Template, error)
}

// SignatureRepo stores signing credentials per (account, user)
type SignatureRepo interface {
	Get(ctx context.Context, accountID, userID string) (*models.Signature, error)
	Upsert(ctx context.Context, signature *models.Signature) error
}

// InspectorRepo stores field-user identities and API keys
type InspectorRepo interface {
	Create(ctx context.Context, inspector *models.Inspector) error
	GetByID(ctx context.Context, id string) (*models.Inspector, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Inspector, error)
	UpdatePINHash(ctx context.Context, id, pinHash string) error
}
