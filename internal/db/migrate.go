package db

import (
	"database/sql"
	"fmt"
	"strings"
)

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'USER',
			default_visibility TEXT NOT NULL DEFAULT 'PRIVATE',
			create_time TEXT NOT NULL,
			update_time TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS personal_access_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_prefix TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_used_at TEXT,
			expires_at TEXT,
			revoked_at TEXT,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS memos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL,
			parent_id INTEGER,
			content TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'PRIVATE',
			row_status TEXT NOT NULL DEFAULT 'NORMAL',
			pinned INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL DEFAULT '{}',
			create_time TEXT NOT NULL,
			update_time TEXT NOT NULL,
			FOREIGN KEY(creator_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(parent_id) REFERENCES memos(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memos_creator ON memos(creator_id);`,
		`CREATE INDEX IF NOT EXISTS idx_memos_row_status ON memos(row_status);`,
		`CREATE INDEX IF NOT EXISTS idx_memos_parent ON memos(parent_id);`,
		`CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL,
			memo_id INTEGER,
			filename TEXT NOT NULL,
			type TEXT NOT NULL,
			size INTEGER NOT NULL,
			external_link TEXT NOT NULL DEFAULT '',
			storage_type TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			create_time TEXT NOT NULL,
			FOREIGN KEY(creator_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(memo_id) REFERENCES memos(id) ON DELETE SET NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_creator ON resources(creator_id);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_memo ON resources(memo_id);`,
		`CREATE TABLE IF NOT EXISTS workspace_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			update_time TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	hasContentHash, err := hasColumn(db, "resources", "content_hash")
	if err != nil {
		return err
	}
	if !hasContentHash {
		if _, err := db.Exec(`ALTER TABLE resources ADD COLUMN content_hash TEXT NOT NULL DEFAULT '';`); err != nil {
			return fmt.Errorf("add resources.content_hash: %w", err)
		}
	}

	hasParentID, err := hasColumn(db, "memos", "parent_id")
	if err != nil {
		return err
	}
	if !hasParentID {
		if _, err := db.Exec(`ALTER TABLE memos ADD COLUMN parent_id INTEGER REFERENCES memos(id) ON DELETE CASCADE;`); err != nil {
			return fmt.Errorf("add memos.parent_id: %w", err)
		}
	}

	return nil
}

func hasColumn(db *sql.DB, tableName string, columnName string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s);`, tableName))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, fmt.Errorf("scan table_info(%s): %w", tableName, err)
		}
		if strings.EqualFold(name, columnName) {
			return true, nil
		}
	}
	return false, rows.Err()
}
