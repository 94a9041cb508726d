package database

import (
	"context"
	"database/sql"
)

// schema holds the DDL for the four shared tables. Every statement is
// idempotent so InitSchema can run at each server start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        email VARCHAR(255) NOT NULL UNIQUE,
        password_hash VARCHAR(255) NOT NULL,
        is_active TINYINT(1) NOT NULL DEFAULT 1,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    )`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        user_id BIGINT UNSIGNED NOT NULL,
        token_hash CHAR(64) NOT NULL,
        expires_at DATETIME NOT NULL,
        revoked_at DATETIME NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_refresh_tokens_hash (token_hash),
        CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id)
    )`,
	`CREATE TABLE IF NOT EXISTS events_base (
        id CHAR(36) NOT NULL PRIMARY KEY,
        title VARCHAR(255) NOT NULL,
        starts_at DATETIME NOT NULL,
        ends_at DATETIME NULL,
        all_day TINYINT(1) NOT NULL DEFAULT 0,
        location VARCHAR(255) NOT NULL DEFAULT '',
        description TEXT NULL,
        ritmos VARCHAR(255) NOT NULL DEFAULT '',
        tamanho_publico VARCHAR(64) NOT NULL DEFAULT '',
        lgbt VARCHAR(64) NOT NULL DEFAULT '',
        KEY idx_events_base_starts_at (starts_at)
    )`,
	`CREATE TABLE IF NOT EXISTS user_event_overrides (
        owner_id BIGINT UNSIGNED NOT NULL,
        base_event_id CHAR(36) NOT NULL,
        status VARCHAR(16) NULL,
        hidden TINYINT(1) NULL,
        notes TEXT NULL,
        updated_at DATETIME NULL,
        PRIMARY KEY (owner_id, base_event_id),
        CONSTRAINT fk_overrides_owner FOREIGN KEY (owner_id) REFERENCES users (id)
    )`,
}

// InitSchema creates the tables when they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
