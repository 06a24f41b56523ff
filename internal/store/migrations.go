package store

import "fmt"

func (s *Store) migrate() error {
	var migrations []string

	switch s.driver {
	case "postgres":
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				last_login_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,

			`CREATE TABLE IF NOT EXISTS api_keys (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id),
				token_hash TEXT UNIQUE NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMPTZ,
				revoked_at TIMESTAMPTZ,
				last_used_at TIMESTAMPTZ
			)`,

			`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(token_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id)`,
		}

	case "mysql":
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(128) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				last_login_at DATETIME(6),
				created_at DATETIME(6) NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS api_keys (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				token_hash VARCHAR(64) UNIQUE NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				created_at DATETIME(6) NOT NULL,
				expires_at DATETIME(6),
				revoked_at DATETIME(6),
				last_used_at DATETIME(6),
				CONSTRAINT fk_api_keys_user FOREIGN KEY (user_id) REFERENCES users(id),
				INDEX idx_api_keys_user (user_id)
			)`,
		}

	default: // sqlite
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				is_active INTEGER NOT NULL DEFAULT 1,
				last_login_at DATETIME,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,

			`CREATE TABLE IF NOT EXISTS api_keys (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(id),
				token_hash TEXT UNIQUE NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				expires_at DATETIME,
				revoked_at DATETIME,
				last_used_at DATETIME
			)`,

			`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(token_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id)`,
		}
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
