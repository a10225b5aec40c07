package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/railzwaylabs/atelier/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var (
	ErrSchemaStateMissing     = errors.New("schema state not found")
	ErrSchemaStateInactive    = errors.New("schema state is not active")
	ErrSchemaVersionMismatch  = errors.New("schema version mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema checksum mismatch")
)

type schemaState struct {
	Status        string
	SchemaVersion string
	Checksum      *string
}

// CheckSchema fails unless the database was migrated with exactly the embedded migrations.
// SQLite databases are auto-migrated and always pass.
func CheckSchema(ctx context.Context, conn *gorm.DB, driver string) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	if dialect == DialectSQLite {
		return nil
	}

	latest, err := LatestMigrationVersion(dialect)
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum(dialect)
	if err != nil {
		return err
	}

	var state schemaState
	result := conn.WithContext(ctx).
		Raw(`SELECT status, schema_version, checksum FROM schema_state WHERE id = 1`).
		Scan(&state)
	if result.Error != nil {
		return fmt.Errorf("load schema state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSchemaStateMissing
	}

	if status := strings.ToLower(strings.TrimSpace(state.Status)); status != schemaStatusActive {
		return fmt.Errorf("%w: status=%s", ErrSchemaStateInactive, status)
	}
	if want := fmt.Sprintf("%d", latest); strings.TrimSpace(state.SchemaVersion) != want {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaVersionMismatch, state.SchemaVersion, want)
	}
	if state.Checksum != nil && strings.TrimSpace(*state.Checksum) != "" && strings.TrimSpace(*state.Checksum) != checksum {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, checksum)
	}
	return nil
}

// EnforceSchemaGate refuses to start an app whose database is behind the binary.
func EnforceSchemaGate(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return CheckSchema(ctx, conn, cfg.Database.Driver)
		},
	})
}
