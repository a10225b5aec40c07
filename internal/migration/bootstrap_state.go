package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const schemaStatusActive = "active"

// activateSchemaState records the schema version and checksum the migrator just applied.
func activateSchemaState(ctx context.Context, db *sql.DB, dialect, schemaVersion, checksum string) error {
	if db == nil {
		return errors.New("schema state requires database handle")
	}

	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required for schema state activation")
	}

	now := time.Now().UTC()
	var err error
	switch dialect {
	case DialectPostgres:
		_, err = db.ExecContext(ctx, `
			INSERT INTO schema_state (id, status, schema_version, checksum, activated_at, created_at)
			VALUES (1, $1, $2, $3, $4, $4)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status,
			    schema_version = EXCLUDED.schema_version,
			    checksum = EXCLUDED.checksum,
			    activated_at = EXCLUDED.activated_at
		`, schemaStatusActive, version, nullIfEmpty(checksum), now)
	case DialectMySQL:
		_, err = db.ExecContext(ctx, `
			INSERT INTO schema_state (id, status, schema_version, checksum, activated_at, created_at)
			VALUES (1, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
			    status = VALUES(status),
			    schema_version = VALUES(schema_version),
			    checksum = VALUES(checksum),
			    activated_at = VALUES(activated_at)
		`, schemaStatusActive, version, nullIfEmpty(checksum), now, now)
	default:
		return fmt.Errorf("schema state is not tracked for %s", dialect)
	}
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
