package migration

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed migrations
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Dialect normalizes a configured driver name.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func dialectDir(dialect string) string {
	return migrationsDir + "/" + dialect
}
