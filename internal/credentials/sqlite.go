package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS user_secrets (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(user_id, key)
);
CREATE INDEX IF NOT EXISTS idx_user_secrets_user ON user_secrets(user_id);
`

// SQLiteStore implements Store over a SQLite database, sealing every value
// with the configured Cipher before it touches disk.
type SQLiteStore struct {
	db     *sql.DB
	cipher *Cipher
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for tests.
func NewSQLiteStore(path string, cipher *Cipher, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open secrets database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply secrets schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		cipher: cipher,
		logger: logger.With("component", "secrets"),
	}, nil
}

// NewStoreWithDB wraps an existing database handle. The caller owns the
// handle's lifecycle; used by tests that inject sqlmock.
func NewStoreWithDB(db *sql.DB, cipher *Cipher, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, cipher: cipher, logger: logger.With("component", "secrets")}
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAll returns every decrypted secret for a user.
func (s *SQLiteStore) GetAll(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM user_secrets WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query secrets: %w", err)
	}
	defer rows.Close()

	secrets := make(map[string]string)
	for rows.Next() {
		var key, sealed string
		if err := rows.Scan(&key, &sealed); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		value, err := s.cipher.Decrypt(sealed)
		if err != nil {
			// A secret sealed under a rotated key is unusable but must not
			// take the rest of the bag down with it.
			s.logger.Warn("skipping undecryptable secret", "key", key, "error", err)
			continue
		}
		secrets[key] = value
	}
	return secrets, rows.Err()
}

// Get returns one decrypted secret.
func (s *SQLiteStore) Get(ctx context.Context, userID, key string) (string, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_secrets WHERE user_id = ? AND key = ?`, userID, key).Scan(&sealed)
	if err == sql.ErrNoRows {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query secret: %w", err)
	}
	return s.cipher.Decrypt(sealed)
}

// Set stores or overwrites a secret.
func (s *SQLiteStore) Set(ctx context.Context, userID, key, value string) error {
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_secrets (user_id, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, sealed, now, now)
	if err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	return nil
}

// Delete removes a secret.
func (s *SQLiteStore) Delete(ctx context.Context, userID, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_secrets WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if affected == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// ListKeys returns the secret key names for a user.
func (s *SQLiteStore) ListKeys(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM user_secrets WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list secret keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan secret key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
