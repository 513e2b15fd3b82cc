// Package migrations owns the gateway schema.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"taskboard/internal/model"
)

//go:embed sql/*.sql
var files embed.FS

// Up applies the embedded SQL migrations to the PostgreSQL database at url
// (pgx5:// scheme).
func Up(url string, log *slog.Logger) error {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("closing migrator", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	log.Debug("running migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("schema up to date", "version", version, "dirty", dirty)
	return nil
}

// AutoMigrate creates the schema from the models. Used for SQLite, where the
// embedded PostgreSQL DDL does not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Profile{},
		&model.Project{},
		&model.Task{},
		&model.Comment{},
	)
}
