package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"enfora/internal/config"
	"enfora/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the SQLite database at path, applies pragmas and runs
// the embedded migrations.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", path).Msg("connecting to database")

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := optimizeSQLite(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to optimize SQLite")
		db.Close()
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established and optimized")
	return db, nil
}

// dsn adds connection-level options that PRAGMA statements on a pooled
// handle would only apply to a single connection.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_txlock=immediate"
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("migration applied")
	}

	logger.Info().Int("applied", len(results)).Msg("schema up to date")
	return nil
}

// sqlitePragmas tune the database file for a single writer and many
// concurrent readers.
var sqlitePragmas = []string{
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"cache_size = -64000",
	"foreign_keys = ON",
	"temp_store = MEMORY",
}

func optimizeSQLite(sqlDB *sql.DB, logger zerolog.Logger) error {
	for _, pragma := range sqlitePragmas {
		if _, err := sqlDB.Exec("PRAGMA " + pragma); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma, err)
		}
	}
	logger.Debug().Strs("pragmas", sqlitePragmas).Msg("SQLite pragmas set")
	return nil
}
