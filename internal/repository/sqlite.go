package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	// Seed the default checklist template on first run
	if err := SeedDefaultTemplate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Inspectors (field users; identity every draft is keyed on)
	CREATE TABLE IF NOT EXISTS inspectors (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		api_key TEXT UNIQUE NOT NULL,
		api_key_hash TEXT UNIQUE NOT NULL,
		pin_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_inspectors_api_key_hash ON inspectors(api_key_hash);
	CREATE INDEX IF NOT EXISTS idx_inspectors_account_id ON inspectors(account_id);

	-- Checklist templates (read-only input to the engine)
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS template_questions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		question_type TEXT NOT NULL DEFAULT 'gated',
		optional INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_template_questions_template_id ON template_questions(template_id);

	-- Signing credentials, one per (account, user)
	CREATE TABLE IF NOT EXISTS signatures (
		account_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		inspector_name TEXT NOT NULL,
		signature_data TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, user_id)
	);

	-- Inspection records; responses are stored as one JSON document and
	-- always written whole (last full record wins)
	CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		team_number TEXT,
		template_id TEXT NOT NULL,
		inspector_name TEXT,
		conducted_at DATETIME NOT NULL,
		responses TEXT NOT NULL,
		general_comments TEXT NOT NULL DEFAULT '',
		signature_data TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		flagged_count INTEGER NOT NULL DEFAULT 0,
		actions_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspections_facility_status ON inspections(facility_id, status);
	CREATE INDEX IF NOT EXISTS idx_inspections_account_id ON inspections(account_id);

	-- Photo attachments, catalogued per checklist item
	CREATE TABLE IF NOT EXISTS inspection_photos (
		id TEXT PRIMARY KEY,
		inspection_id TEXT NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL,
		stored_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		uploaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspection_photos_inspection_id ON inspection_photos(inspection_id);
	CREATE INDEX IF NOT EXISTS idx_inspection_photos_question ON inspection_photos(inspection_id, question_id);
	`

	_, err := db.Exec(schema)
	return err
}
