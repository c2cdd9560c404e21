// Package integration provides integration tests for the smart payment
// backend. It uses testcontainers to spin up real PostgreSQL databases.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database connection backed by a container.
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB creates a fresh PostgreSQL container with migrations applied.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("smartpay_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// Close closes the database connection and terminates the container.
func (tdb *TestDB) Close() {
	ctx := context.Background()

	if tdb.SqlDB != nil {
		tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(ctx); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates all tables except schema_migrations and re-seeds
// the system tolerance row that the service requires at startup.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec("TRUNCATE TABLE " + table + " CASCADE").Error
		if err != nil {
			tdb.t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}

	tdb.SeedSystemTolerance("5.0000", "2.0000")
}

// CreateTestCompany inserts a company row and returns its ID.
func (tdb *TestDB) CreateTestCompany(name, countryCode, currency, excessPolicy string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`
		INSERT INTO companies (id, version, name, country_code, currency, excess_policy)
		VALUES (?, 1, ?, ?, ?, ?)
	`, id, name, countryCode, currency, excessPolicy).Error
	require.NoError(tdb.t, err, "Failed to create test company")
	return id
}

// SeedSystemTolerance upserts the mandatory SYSTEM-scope tolerance row.
func (tdb *TestDB) SeedSystemTolerance(absolute, percent string) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO tolerance_settings (id, version, scope, country_code, max_writeoff_absolute, max_writeoff_percent)
		VALUES (?, 1, 'SYSTEM', '', ?, ?)
		ON CONFLICT (id) DO UPDATE SET max_writeoff_absolute = EXCLUDED.max_writeoff_absolute,
			max_writeoff_percent = EXCLUDED.max_writeoff_percent
	`, uuid.MustParse("a0000000-0000-4000-8000-000000000001"),
		decimal.RequireFromString(absolute), decimal.RequireFromString(percent)).Error
	require.NoError(tdb.t, err, "Failed to seed system tolerance")
}

// SeedCountryTolerance inserts a COUNTRY-scope tolerance row.
// Pass an empty string to leave a cap unset.
func (tdb *TestDB) SeedCountryTolerance(countryCode, absolute, percent string) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO tolerance_settings (id, version, scope, country_code, max_writeoff_absolute, max_writeoff_percent)
		VALUES (?, 1, 'COUNTRY', ?, ?, ?)
	`, uuid.New(), countryCode, nullableDecimal(absolute), nullableDecimal(percent)).Error
	require.NoError(tdb.t, err, "Failed to seed country tolerance")
}

func nullableDecimal(s string) interface{} {
	if s == "" {
		return nil
	}
	return decimal.RequireFromString(s)
}

// connectToDatabase establishes a GORM connection to the database.
func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

// runMigrations applies all database migrations.
func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	migrationsPath := findMigrationsPath()
	require.NotEmpty(t, migrationsPath, "Could not find migrations directory")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "Failed to create migration driver")

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to run migrations")
	}
}

// findMigrationsPath locates the migrations directory relative to this file.
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		migrationsPath := filepath.Join(dir, "migrations")
		if _, err := os.Stat(migrationsPath); err == nil {
			return migrationsPath
		}
		dir = filepath.Dir(dir)
	}

	return ""
}
