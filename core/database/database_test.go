package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/dndsurvey/core/config"
)

func TestDriverDSN(t *testing.T) {
	driver, dsn, err := driverDSN(Config{Driver: coreconfig.DriverPostgres, URL: "postgres://u:p@db:5432/survey?sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@db:5432/survey?sslmode=disable", dsn)

	driver, dsn, err = driverDSN(Config{Driver: coreconfig.DriverSQLite, URL: "sqlite://data/survey.db"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", driver)
	assert.Contains(t, dsn, "data/survey.db?")
	assert.Contains(t, dsn, "foreign_keys(1)")

	_, _, err = driverDSN(Config{Driver: coreconfig.DriverSQLite})
	assert.Error(t, err)
	_, _, err = driverDSN(Config{Driver: "mysql", URL: "x"})
	assert.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	got, err := migrateURL(Config{Driver: coreconfig.DriverSQLite, URL: "file:/tmp/s.db?cache=shared"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/s.db", got)

	got, err = migrateURL(Config{Driver: coreconfig.DriverPostgres, URL: "postgres://localhost/db"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", got)
}

func TestRedactHidesPassword(t *testing.T) {
	got := redact(Config{Driver: coreconfig.DriverPostgres, URL: "postgres://bot:secret@db:5432/survey"})
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "db:5432")
	assert.Equal(t, "<dsn>", redact(Config{Driver: coreconfig.DriverPostgres, URL: "host=db password=secret"}))
}

func TestMigrationsPathAndFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := MigrationsPath(Config{Driver: coreconfig.DriverSQLite, MigrationsDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sqlite"), p)

	require.NoError(t, os.MkdirAll(p, 0o755))
	for _, name := range []string{"000002_stats.up.sql", "000001_init.up.sql", "000001_init.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(p, name), []byte("--"), 0o644))
	}
	files := listMigrationFiles(p)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_stats.up.sql"}, files)
	assert.Equal(t, []string{"000002_stats.up.sql"}, selectBetween(files, 1, 2))
	assert.Equal(t, []string{"000002_stats.up.sql"}, selectBetween(files, 2, 1))
	assert.Empty(t, selectBetween(files, 2, 2))
}

func TestRollbackRejectsNonPositiveSteps(t *testing.T) {
	assert.Error(t, RollbackMigrations(Config{Driver: coreconfig.DriverSQLite, URL: "x.db"}, 0))
}
