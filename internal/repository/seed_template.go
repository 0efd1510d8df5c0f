package repository

import (
	"database/sql"
	"fmt"
)

// DefaultTemplateName is the checklist used when a session does not name one
const DefaultTemplateName = "General Facility Inspection"

// SeedDefaultTemplate creates the default checklist template if it doesn't exist
func SeedDefaultTemplate(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM templates WHERE name = ?`, DefaultTemplateName).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const templateID = "tmpl-general-v1"
	if _, err := tx.Exec(`INSERT INTO templates (id, name) VALUES (?, ?)`, templateID, DefaultTemplateName); err != nil {
		return err
	}

	questions := []struct {
		text     string
		qtype    string
		optional bool
	}{
		{"Are all fire extinguishers charged and accessible?", "gated", false},
		{"Are emergency exits unobstructed and clearly marked?", "gated", false},
		{"Is the backflow prevention assembly free of visible leaks?", "gated", false},
		{"Are chemical storage areas properly labelled and secured?", "gated", false},
		{"Is personal protective equipment available and in good condition?", "gated", false},
		{"Are walkways and work surfaces free of trip hazards?", "gated", false},
		{"Is the first aid station stocked and signage visible?", "gated", false},
		{"Are electrical panels accessible with clearance maintained?", "gated", false},
		{"General site observations", "comment", true},
		{"Follow-up items from previous inspection", "comment", true},
	}

	for i, q := range questions {
		id := fmt.Sprintf("%s-q%02d", templateID, i+1)
		if _, err := tx.Exec(`
			INSERT INTO template_questions (id, template_id, text, question_type, optional, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, templateID, q.text, q.qtype, q.optional, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}
