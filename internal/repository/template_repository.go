package repository

import (
	"context"
	"database/sql"

	"github.com/inspectsync/server/internal/models"
)

// TemplateRepository reads checklist templates (SQLite)
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetByName retrieves a template and its ordered questions by name
func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*models.Template, error) {
	return r.get(ctx, `SELECT id, name FROM templates WHERE name = ?`, name)
}

// GetByID retrieves a template and its ordered questions by id
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	return r.get(ctx, `SELECT id, name FROM templates WHERE id = ?`, id)
}

func (r *TemplateRepository) get(ctx context.Context, query string, arg interface{}) (*models.Template, error) {
	var tmpl models.Template
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&tmpl.ID, &tmpl.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, text, question_type, optional, position
		FROM template_questions
		WHERE template_id = ?
		ORDER BY position ASC
	`, tmpl.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q models.Question
		var qtype string
		if err := rows.Scan(&q.ID, &q.Text, &qtype, &q.Optional, &q.Position); err != nil {
			return nil, err
		}
		q.Type = models.QuestionType(qtype)
		tmpl.Questions = append(tmpl.Questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &tmpl, nil
}
