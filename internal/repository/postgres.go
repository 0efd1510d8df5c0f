package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL connection for the
// authoritative inspection store. Identity and template tables stay in the
// embedded SQLite database either way.
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		team_number TEXT,
		template_id TEXT NOT NULL,
		inspector_name TEXT,
		conducted_at TIMESTAMP NOT NULL,
		responses TEXT NOT NULL,
		general_comments TEXT NOT NULL DEFAULT '',
		signature_data TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		flagged_count INTEGER NOT NULL DEFAULT 0,
		actions_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspections_facility_status ON inspections(facility_id, status);
	CREATE INDEX IF NOT EXISTS idx_inspections_account_id ON inspections(account_id);

	CREATE TABLE IF NOT EXISTS inspection_photos (
		id TEXT PRIMARY KEY,
		inspection_id TEXT NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL,
		stored_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspection_photos_inspection_id ON inspection_photos(inspection_id);
	CREATE INDEX IF NOT EXISTS idx_inspection_photos_question ON inspection_photos(inspection_id, question_id);
	`

	_, err := db.Exec(schema)
	return err
}
