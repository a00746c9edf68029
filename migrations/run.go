package migrations

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

//go:embed *.sql
var fs embed.FS

// Run applies all up migrations embedded in this package. It is idempotent.
func Run(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("migrations: empty dsn")
	}

	d, err := iofs.New(fs, ".")
	if err != nil {
		return fmt.Errorf("migrations: iofs: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, pgxURL(dsn))
	if err != nil {
		return fmt.Errorf("migrations: new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// pgxURL rewrites a postgres:// DSN to the pgx5:// scheme so migrate selects
// the pgx driver the rest of the service connects with.
func pgxURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}
