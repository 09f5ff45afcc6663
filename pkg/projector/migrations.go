package projector

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending schema migration to dsn. It opens its own
// database/sql connection via pgx's stdlib driver, since golang-migrate's
// postgres driver expects one, separate from the pgxpool.Pool the
// Projector itself queries through.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("projector: open migration connection: %w", err)
	}
	defer db.Close()

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("projector: load embedded migrations: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("projector: open migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("projector: build migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("projector: apply migrations: %w", err)
	}
	return nil
}
