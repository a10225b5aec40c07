package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	clientdomain "github.com/railzwaylabs/atelier/internal/client/domain"
	commissiondomain "github.com/railzwaylabs/atelier/internal/commission/domain"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&consultantdomain.Consultant{},
		&clientdomain.Client{},
		&orderdomain.Order{},
		&commissiondomain.Commission{},
		&paymentdomain.EventRecord{},
	}
}

// Run brings the schema of conn up to date. Postgres and MySQL apply the embedded
// SQL migrations and record the result in schema_state; SQLite is auto-migrated from the models.
func Run(ctx context.Context, conn *gorm.DB, driver string) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	if dialect == DialectSQLite {
		return conn.WithContext(ctx).AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(ctx, sqlDB, dialect)
}

// RunMigrations applies all embedded migrations for dialect and activates the schema state.
func RunMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	unlock, err := acquireAdvisoryLock(ctx, db, dialect)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	latestVersion, err := LatestMigrationVersion(dialect)
	if err != nil {
		return err
	}
	expectedChecksum, err := MigrationsChecksum(dialect)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, dialectDir(dialect))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := databaseDriver(db, dialect)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	currentVersion, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if currentVersion != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", currentVersion, latestVersion)
	}

	return activateSchemaState(ctx, db, dialect, fmt.Sprintf("%d", latestVersion), expectedChecksum)
}

func databaseDriver(db *sql.DB, dialect string) (database.Driver, error) {
	switch dialect {
	case DialectPostgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case DialectMySQL:
		return mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("no sql migrations for %s", dialect)
	}
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	if migrator == nil {
		return 0, errors.New("migrator is required")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
