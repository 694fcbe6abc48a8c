package db

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes all database migrations
func RunMigrations(db *DB) error {
	// Check if schema_version table exists
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		// First time initialization
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY applied_at DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Apply migrations if needed
	// Currently only version 1 exists
	if currentVersion < 1 {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	return nil
}

// initializeSchema creates all tables for a new database
func initializeSchema(db *DB) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		schemaVersionTable,
		usersTable,
		usersIndexes,
		requestsTable,
		requestsIndexes,
		credentialsTable,
		credentialsIndexes,
		auditLogsTable,
		auditLogsIndexes,
		`INSERT INTO schema_version (version) VALUES (1)`,
	}
	for _, stmt := range statements {
		if err := execSQL(tx, stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersTable = `
CREATE TABLE users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    totp_secret   TEXT,
    enabled       INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersIndexes = `
CREATE INDEX idx_users_username ON users(username);
CREATE INDEX idx_users_role ON users(role)`

	requestsTable = `
CREATE TABLE requests (
    id                   TEXT PRIMARY KEY,
    requester_id         TEXT,
    created_by_admin     INTEGER NOT NULL DEFAULT 0,
    creator_id           TEXT,
    holder_name          TEXT NOT NULL,
    holder_id            TEXT NOT NULL,
    email                TEXT NOT NULL,
    phone                TEXT NOT NULL,
    program              TEXT NOT NULL,
    activity_type        TEXT,
    activity_description TEXT,
    vehicle_plate        TEXT NOT NULL,
    vehicle_model        TEXT NOT NULL,
    vehicle_color        TEXT NOT NULL,
    garage_location      TEXT,
    modification_notes   TEXT,
    vehicle_photo_ref    TEXT,
    vehicle_id_photo_ref TEXT,
    level1_approved      INTEGER NOT NULL DEFAULT 0,
    level1_approver_id   TEXT,
    level1_approved_at   DATETIME,
    level1_comments      TEXT,
    level2_approved      INTEGER NOT NULL DEFAULT 0,
    level2_approver_id   TEXT,
    level2_approved_at   DATETIME,
    level2_comments      TEXT,
    denial_reason        TEXT,
    denial_level         INTEGER,
    denied_by            TEXT,
    denied_at            DATETIME,
    status               TEXT NOT NULL DEFAULT 'pending',
    version              INTEGER NOT NULL DEFAULT 0,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	requestsIndexes = `
CREATE INDEX idx_requests_status ON requests(status);
CREATE INDEX idx_requests_requester ON requests(requester_id);
CREATE INDEX idx_requests_created_at ON requests(created_at)`

	credentialsTable = `
CREATE TABLE credentials (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id   TEXT NOT NULL,
    serial       TEXT NOT NULL UNIQUE,
    payload      TEXT NOT NULL,
    image_ref    TEXT,
    document_ref TEXT,
    active       INTEGER NOT NULL DEFAULT 1,
    issued_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at   DATETIME
)`

	// The partial unique index enforces "at most one active credential per
	// request" at the storage layer, independent of issuer correctness.
	credentialsIndexes = `
CREATE INDEX idx_credentials_request ON credentials(request_id);
CREATE UNIQUE INDEX idx_credentials_active ON credentials(request_id) WHERE active = 1`

	auditLogsTable = `
CREATE TABLE audit_logs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    action            TEXT NOT NULL,
    description       TEXT NOT NULL,
    actor_id          TEXT NOT NULL,
    actor_name        TEXT,
    target_user_id    TEXT,
    target_user_name  TEXT,
    target_request_id TEXT,
    target_summary    TEXT,
    metadata          TEXT
)`

	auditLogsIndexes = `
CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX idx_audit_action ON audit_logs(action);
CREATE INDEX idx_audit_actor ON audit_logs(actor_id);
CREATE INDEX idx_audit_target_request ON audit_logs(target_request_id)`
)
