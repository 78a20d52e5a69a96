package store

import (
	"errors"
	"fmt"

	"checkout-service/internal/store/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// NewMigrator opens a migrator on its own connection, reading the embedded
// schema files.
func NewMigrator(databaseURL, credential string) (*migrate.Migrate, error) {
	dsn, err := BuildDSN(databaseURL, credential)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration
func Migrate(databaseURL, credential string) error {
	m, err := NewMigrator(databaseURL, credential)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
