package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	advisoryLockKey int64 = 7_310_442_118
	mysqlLockName         = "atelier_migrate"
)

var ErrMigrationLocked = errors.New("another migration process holds the advisory lock")

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock takes a session lock so that two migrators never run at once.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB, dialect string) (unlockFunc, error) {
	if db == nil {
		return nil, errors.New("advisory lock requires database handle")
	}

	var lockSQL, unlockSQL string
	var arg any
	switch dialect {
	case DialectPostgres:
		lockSQL, unlockSQL, arg = "SELECT pg_try_advisory_lock($1)", "SELECT pg_advisory_unlock($1)", advisoryLockKey
	case DialectMySQL:
		lockSQL, unlockSQL, arg = "SELECT GET_LOCK(?, 0)", "SELECT RELEASE_LOCK(?)", mysqlLockName
	default:
		return func(context.Context) error { return nil }, nil
	}

	// Session locks belong to one connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var locked sql.NullBool
	if err := conn.QueryRowContext(ctx, lockSQL, arg).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked.Valid || !locked.Bool {
		_ = conn.Close()
		return nil, ErrMigrationLocked
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released sql.NullBool
		if err := conn.QueryRowContext(unlockCtx, unlockSQL, arg).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released.Valid || !released.Bool {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
