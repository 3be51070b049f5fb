package database

import (
	"context"
	"fmt"
)

// schemaSQL creates the credential cache table.
//
// The daemon persists exactly two values (token, device id) so a single
// key/value table is the whole schema. No migration history is kept;
// the statement is idempotent and re-run on every startup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS omlet_credentials (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Setup creates the schema if it does not already exist.
// Called once on startup before any reads or writes.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema creation fails
func (db *DB) Setup(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
