package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/plodoki/pakd/internal/model"
)

// Options selects the database backend for the key store.
type Options struct {
	// Driver is one of "sqlite" (default), "postgres", or "mysql".
	Driver string
	// DSN is the connection string for postgres/mysql backends.
	DSN string
	// DataDir is the directory holding the SQLite database file. Empty means
	// an in-memory database (used by tests).
	DataDir string
}

// Store persists users and personal API key records. It backs listing,
// revocation, and the verifier's revocation checks; every read goes straight
// to the database so a revocation is visible to all subsequent reads
// immediately.
type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore opens the key store and runs schema migrations.
func NewStore(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite":
		var dsn string
		if opts.DataDir == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(opts.DataDir, "pakd.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open key store: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open key store: %w", err)
		}
	case "mysql":
		db, err = sqlx.Connect("mysql", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open key store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate key store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insertID runs a named INSERT and returns the generated row ID, papering
// over the postgres driver's lack of LastInsertId.
func (s *Store) insertID(ctx context.Context, q string, arg interface{}) (int64, error) {
	if s.driver == "postgres" {
		rows, err := s.db.NamedQueryContext(ctx, q+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if !rows.Next() {
			return 0, sql.ErrNoRows
		}
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a new user account. The ID and CreatedAt fields on user
// are populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO users (email, password_hash, name, is_active, created_at)
		VALUES (:email, :password_hash, :name, :is_active, :created_at)`

	id, err := s.insertID(ctx, q, user)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	q := s.db.Rebind("SELECT * FROM users WHERE email = ?")
	if err := s.db.GetContext(ctx, &user, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	q := s.db.Rebind("SELECT * FROM users WHERE id = ?")
	if err := s.db.GetContext(ctx, &user, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all user accounts.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// HasAnyUser reports whether at least one user account exists. Used for
// first-run detection.
func (s *Store) HasAnyUser(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// UpdateUserLastLogin sets the last_login_at timestamp for a user.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64) error {
	q := s.db.Rebind("UPDATE users SET last_login_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The token_hash must already be
// set (use HashToken). The ID and CreatedAt fields are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys (user_id, token_hash, label, created_at, expires_at)
		VALUES (:user_id, :token_hash, :label, :created_at, :expires_at)`

	id, err := s.insertID(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an API key record by the SHA-256 hash of its token.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.db.Rebind("SELECT * FROM api_keys WHERE token_hash = ?")
	if err := s.db.GetContext(ctx, &key, q, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeysForUser returns all keys owned by a user, newest first. Revoked
// keys are included; records are never hard-deleted.
func (s *Store) ListAPIKeysForUser(ctx context.Context, userID int64) ([]model.APIKey, error) {
	var keys []model.APIKey
	q := s.db.Rebind("SELECT * FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC")
	if err := s.db.SelectContext(ctx, &keys, q, userID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey sets the revocation timestamp on a key owned by userID.
// Returns ErrNotFound both when no such key exists and when the key belongs
// to a different user. Revocation is monotonic: re-revoking an owned key
// succeeds without moving the original timestamp.
func (s *Store) RevokeAPIKey(ctx context.Context, id, userID int64) error {
	q := s.db.Rebind("UPDATE api_keys SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL")
	result, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing updated: either the key is already revoked (a no-op for the
	// owner) or it does not exist for this user.
	var count int
	cq := s.db.Rebind("SELECT COUNT(*) FROM api_keys WHERE id = ? AND user_id = ?")
	if err := s.db.GetContext(ctx, &count, cq, id, userID); err != nil {
		return fmt.Errorf("revoke api key lookup: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed sets the last_used_at timestamp for an API key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	q := s.db.Rebind("UPDATE api_keys SET last_used_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key last used rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashToken returns the hex-encoded SHA-256 hash of a raw token string. Only
// this hash is ever persisted; the plaintext token cannot be reconstructed
// from it.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
