package postgres

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/postgres/migrations"
)

// Migrate applies the embedded SQL migrations. Only Postgres is supported;
// other dialects are a no-op and are expected to be prepared by the caller.
func (c *Client) Migrate() error {
	if c.Dialect() != DialectPostgres {
		c.logger.Debugw("skipping migrations", "dialect", c.Dialect())
		return nil
	}

	driver, err := migratepg.WithInstance(c.sqlDB, &migratepg.Config{})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create migration driver").
			Mark(ierr.ErrDatabase)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to load embedded migrations").
			Mark(ierr.ErrSystem)
	}

	m, err := migrate.NewWithInstance("iofs", source, DialectPostgres, driver)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to initialise migrations").
			Mark(ierr.ErrDatabase)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return ierr.WithError(err).
			WithHint("Failed to apply migrations").
			Mark(ierr.ErrDatabase)
	}

	version, dirty, _ := m.Version()
	c.logger.Infow("database migrations applied", "version", version, "dirty", dirty)
	return nil
}
