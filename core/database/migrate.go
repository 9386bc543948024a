package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/dndsurvey/core/config"
	"github.com/m3rciful/dndsurvey/core/logger"
)

// RunMigrations applies all up migrations for the configured driver.
func RunMigrations(cfg Config) error {
	return migrateSteps(cfg, 0)
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(cfg Config, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return migrateSteps(cfg, -steps)
}

// MigrationsPath resolves the directory holding migrations for cfg's driver.
func MigrationsPath(cfg Config) (string, error) {
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	driver := cfg.Driver
	if driver == "" {
		driver = coreconfig.DriverPostgres
	}
	return filepath.Join(dir, driver), nil
}

// migrateSteps runs every pending up migration when steps is 0, otherwise m.Steps(steps).
func migrateSteps(cfg Config, steps int) error {
	if err := WaitForDatabase(context.Background(), cfg, 30*time.Second); err != nil {
		logger.MIG.Error("db not ready",
			slog.String("event", "db.migrate"),
			logger.Err(err),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	migrationsPath, err := MigrationsPath(cfg)
	if err != nil {
		logger.MIG.Error("path lookup failed",
			slog.String("event", "db.migrate"),
			logger.Err(err),
		)
		return err
	}
	dbURL, err := migrateURL(cfg)
	if err != nil {
		return err
	}

	files := listMigrationFiles(migrationsPath)
	preview, truncated := logger.SummarizeStrings(files, 6)
	args := []any{
		slog.String("event", "resolve"),
		slog.String("path", migrationsPath),
		slog.String("driver", cfg.Driver),
		slog.Int("files_total", len(files)),
	}
	if preview != "" {
		args = append(args, slog.String("files_preview", preview))
	}
	if truncated {
		args = append(args, slog.Bool("files_truncated", true))
	}
	logger.MIG.Debug("migrations resolved", args...)

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), dbURL)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			logger.Err(err),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed",
				slog.String("event", "db.migrate"),
				logger.Err(errors.Join(srcErr, dbErr)),
			)
		}
	}()

	fromVer, dirty, _ := m.Version()
	if dirty {
		logger.MIG.Warn("database is dirty",
			slog.String("event", "db.migrate"),
			slog.Uint64("from_ver", uint64(fromVer)),
		)
	}

	start := time.Now()
	var runErr error
	if steps == 0 {
		runErr = m.Up()
	} else {
		runErr = m.Steps(steps)
	}
	took := time.Since(start)

	switch {
	case runErr == nil:
	case errors.Is(runErr, migrate.ErrNoChange):
		logger.MIG.Info("migrations summary",
			slog.String("event", "summary"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return nil
	default:
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			logger.Err(runErr),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", runErr)
	}

	toVer, _, _ := m.Version()
	changed := selectBetween(files, uint64(fromVer), uint64(toVer))
	if len(changed) > 0 {
		previewApplied, truncatedApplied := logger.SummarizeStrings(changed, 6)
		args := []any{
			slog.String("event", "apply"),
			slog.Int("files_total", len(changed)),
		}
		if previewApplied != "" {
			args = append(args, slog.String("files_preview", previewApplied))
		}
		if truncatedApplied {
			args = append(args, slog.Bool("files_truncated", true))
		}
		logger.MIG.Debug("applied files", args...)
	}

	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(changed)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectBetween returns files whose version lies in (lo, hi], in either direction.
func selectBetween(files []string, a, b uint64) []string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > lo && v <= hi {
			out = append(out, f)
		}
	}
	return out
}
