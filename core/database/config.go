package database

import (
	"fmt"
	"net/url"
	"strings"

	coreconfig "github.com/m3rciful/dndsurvey/core/config"
)

// Config holds database connection settings.
type Config = coreconfig.DatabaseConfig

const sqliteScheme = "sqlite://"

// driverDSN returns the database/sql driver name and data source for cfg.
func driverDSN(cfg Config) (string, string, error) {
	switch cfg.Driver {
	case coreconfig.DriverPostgres, "":
		if cfg.URL == "" {
			return "", "", fmt.Errorf("database url is empty")
		}
		return "postgres", cfg.URL, nil
	case coreconfig.DriverSQLite:
		path := sqlitePath(cfg.URL)
		if path == "" {
			return "", "", fmt.Errorf("sqlite path is empty")
		}
		return "sqlite", path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// migrateURL returns the golang-migrate database URL for cfg.
func migrateURL(cfg Config) (string, error) {
	switch cfg.Driver {
	case coreconfig.DriverPostgres, "":
		return cfg.URL, nil
	case coreconfig.DriverSQLite:
		return sqliteScheme + sqlitePath(cfg.URL), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqlitePath accepts either a bare file path or a sqlite:// URL.
func sqlitePath(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, sqliteScheme)
	raw = strings.TrimPrefix(raw, "file:")
	path, _, _ := strings.Cut(raw, "?")
	return path
}

// redact hides the password of a URL-style DSN for logging.
func redact(cfg Config) string {
	if cfg.Driver == coreconfig.DriverSQLite {
		return sqlitePath(cfg.URL)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return "<dsn>"
	}
	return u.Redacted()
}
