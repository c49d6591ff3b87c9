package database

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.json
var migrationsFS embed.FS

func (s *Store) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	driver, err := mongodb.WithInstance(s.Client, &mongodb.Config{DatabaseName: s.DB.Name()})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, "mongodb", driver)
}

// MigrateUp applies pending migrations. It reports false when there was nothing to do.
func (s *Store) MigrateUp() (bool, error) {
	m, err := s.migrator()
	if err != nil {
		return false, err
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) MigrateDown(steps int) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	err = m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func (s *Store) MigrationVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
