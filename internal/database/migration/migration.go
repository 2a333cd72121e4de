package migration

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"docvault/internal/config"
	"docvault/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Source returns the embedded migration files as a golang-migrate source.
func Source() (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations")
}

// MigrateURL converts the application DSN to the pgx5:// scheme golang-migrate expects.
func MigrateURL(c config.DatabaseConfig) (string, error) {
	dsn, err := database.DSN(c)
	if err != nil {
		return "", err
	}
	return "pgx5://" + strings.TrimPrefix(dsn, "postgres://"), nil
}

// Up applies every pending migration. Running it against an up-to-date schema is a no-op.
func Up(c config.DatabaseConfig, log *zap.Logger) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", c.Host))
	log.Info("db_migration_start")

	src, err := Source()
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	url, err := MigrateURL(c)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{log: log.Sugar()}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("db_migration_failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info("db_migration_success",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// migrateLogger adapts zap to migrate.Logger.
type migrateLogger struct {
	log *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}
