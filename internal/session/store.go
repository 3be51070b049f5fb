package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/database"
)

// Credential cache keys.
const (
	keyToken    = "token"
	keyDeviceID = "device_id"
)

// StoredCredentials is the persisted slice of session state: the current
// bearer token and the selected device id. Either may be empty.
type StoredCredentials struct {
	Token    string
	DeviceID string
}

// Store persists session credentials between process restarts.
type Store interface {
	// Load reads the cached credentials. Absent values are empty strings;
	// a missing cache is not an error.
	Load(ctx context.Context) (StoredCredentials, error)

	// Save writes the cached credentials, replacing any previous values.
	Save(ctx context.Context, creds StoredCredentials) error
}

// SQLiteStore is the SQLite-backed credential store.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore creates a credential store on the given database.
// The schema must already exist (database.DB.Setup).
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads the cached token and device id.
func (s *SQLiteStore) Load(ctx context.Context) (StoredCredentials, error) {
	var creds StoredCredentials

	var err error
	if creds.Token, err = s.get(ctx, keyToken); err != nil {
		return StoredCredentials{}, err
	}
	if creds.DeviceID, err = s.get(ctx, keyDeviceID); err != nil {
		return StoredCredentials{}, err
	}

	return creds, nil
}

// Save writes both values in one transaction so a crash cannot persist a
// token without its device id or vice versa.
func (s *SQLiteStore) Save(ctx context.Context, creds StoredCredentials) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning credential save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if err := upsert(ctx, tx, keyToken, creds.Token); err != nil {
		return err
	}
	if err := upsert(ctx, tx, keyDeviceID, creds.DeviceID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credential save: %w", err)
	}
	return nil
}

// get reads a single cached value; a missing row is an empty string.
func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM omlet_credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential %q: %w", key, err)
	}
	return value, nil
}

func upsert(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO omlet_credentials (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing credential %q: %w", key, err)
	}
	return nil
}
