// Package bootstrap generates the per-dialect SQL files that create the
// engine's own infrastructure: the two-column config table holding the schema
// version and a work-table template for backfill steps to adapt. The files
// are meant to be applied once, before the first migration run, by whatever
// provisioning tool owns the database.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	migrator "github.com/getpup/schema-migrator"
)

// Config configures bootstrap SQL generation.
type Config struct {
	// OutputFolder is the directory where the SQL file will be written
	OutputFolder string

	// OutputFilename is the name of the SQL file
	OutputFilename string

	// ConfigTable is the name of the two-column configuration table
	ConfigTable string

	// WorkTable is the name used for the example work table in the template
	WorkTable string

	// ResourceTable is the owning table the work-table template references
	ResourceTable string

	// InitialVersion is the schema version the config table is seeded with
	InitialVersion int
}

// DefaultConfig returns the default configuration for bootstrap generation.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "bootstrap",
		OutputFilename: fmt.Sprintf("%s_init_schema_migrator.sql", timestamp),
		ConfigTable:    "schema_config",
		WorkTable:      "resource_backfill_work",
		ResourceTable:  "resource",
		InitialVersion: 1,
	}
}

// validateConfig validates all identifier values to prevent SQL injection.
func validateConfig(config *Config) error {
	if err := migrator.ValidateIdentifier(config.ConfigTable, "ConfigTable"); err != nil {
		return err
	}
	if err := migrator.ValidateIdentifier(config.WorkTable, "WorkTable"); err != nil {
		return err
	}
	return migrator.ValidateIdentifier(config.ResourceTable, "ResourceTable")
}

// GeneratePostgres generates a PostgreSQL bootstrap file.
func GeneratePostgres(config *Config) error {
	return generate(config, generatePostgresSQL)
}

// GenerateMySQL generates a MySQL/MariaDB bootstrap file.
func GenerateMySQL(config *Config) error {
	return generate(config, generateMySQLSQL)
}

// GenerateSQLite generates a SQLite bootstrap file.
func GenerateSQLite(config *Config) error {
	return generate(config, generateSQLiteSQL)
}

func generate(config *Config, render func(*Config) string) error {
	// Validate configuration to prevent SQL injection
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := render(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write bootstrap file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Schema Migrator Infrastructure Bootstrap
-- Generated: %s
-- Database: PostgreSQL

-- Config table holds named configuration values
-- One row (name = 'VERSION') holds the current schema version
-- as a string-encoded integer, updated in place via compare-and-set
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Seed the version row; never overwrites an existing value
INSERT INTO %s (name, value)
VALUES ('VERSION', '%d')
ON CONFLICT (name) DO NOTHING;

-- Work table template for backfill-requiring upgrade steps
-- One row per resource awaiting row-level data migration
-- The cascading foreign key removes the item when its resource is deleted:
-- data that no longer exists has nothing to backfill
CREATE TABLE IF NOT EXISTS %s (
    work_id UUID PRIMARY KEY,
    job_id TEXT NOT NULL,
    resource_id TEXT NOT NULL UNIQUE REFERENCES %s (id) ON DELETE CASCADE,
    state TEXT NOT NULL DEFAULT 'created' CHECK (state IN ('created', 'claimed', 'completed')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for job-handle lookup
CREATE INDEX IF NOT EXISTS idx_%s_job
    ON %s (job_id);

-- Index for claiming by state in creation order
CREATE INDEX IF NOT EXISTS idx_%s_state
    ON %s (state, created_at);
`,
		time.Now().Format(time.RFC3339),
		config.ConfigTable,
		config.ConfigTable, config.InitialVersion,
		config.WorkTable, config.ResourceTable,
		config.WorkTable, config.WorkTable,
		config.WorkTable, config.WorkTable,
	)
}

func generateMySQLSQL(config *Config) string {
	return fmt.Sprintf(`-- Schema Migrator Infrastructure Bootstrap
-- Generated: %s
-- Database: MySQL/MariaDB

-- Config table holds named configuration values
-- One row (name = 'VERSION') holds the current schema version
-- as a string-encoded integer, updated in place via compare-and-set
CREATE TABLE IF NOT EXISTS %s (
    name VARCHAR(255) PRIMARY KEY,
    value TEXT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Seed the version row; never overwrites an existing value
INSERT IGNORE INTO %s (name, value)
VALUES ('VERSION', '%d');

-- Work table template for backfill-requiring upgrade steps
-- One row per resource awaiting row-level data migration
-- The cascading foreign key removes the item when its resource is deleted:
-- data that no longer exists has nothing to backfill
CREATE TABLE IF NOT EXISTS %s (
    work_id VARCHAR(36) PRIMARY KEY,
    job_id VARCHAR(255) NOT NULL,
    resource_id VARCHAR(255) NOT NULL UNIQUE,
    state ENUM('created', 'claimed', 'completed') NOT NULL DEFAULT 'created',
    created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),

    FOREIGN KEY (resource_id) REFERENCES %s (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Index for job-handle lookup
CREATE INDEX idx_%s_job
    ON %s (job_id);

-- Index for claiming by state in creation order
CREATE INDEX idx_%s_state
    ON %s (state, created_at);
`,
		time.Now().Format(time.RFC3339),
		config.ConfigTable,
		config.ConfigTable, config.InitialVersion,
		config.WorkTable,
		config.ResourceTable,
		config.WorkTable, config.WorkTable,
		config.WorkTable, config.WorkTable,
	)
}

func generateSQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Schema Migrator Infrastructure Bootstrap
-- Generated: %s
-- Database: SQLite
-- Requires foreign_keys=ON for the cascade delete to apply

-- Config table holds named configuration values
-- One row (name = 'VERSION') holds the current schema version
-- as a string-encoded integer, updated in place via compare-and-set
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Seed the version row; never overwrites an existing value
INSERT OR IGNORE INTO %s (name, value)
VALUES ('VERSION', '%d');

-- Work table template for backfill-requiring upgrade steps
-- One row per resource awaiting row-level data migration
-- The cascading foreign key removes the item when its resource is deleted:
-- data that no longer exists has nothing to backfill
CREATE TABLE IF NOT EXISTS %s (
    work_id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    resource_id TEXT NOT NULL UNIQUE REFERENCES %s (id) ON DELETE CASCADE,
    state TEXT NOT NULL DEFAULT 'created' CHECK (state IN ('created', 'claimed', 'completed')),
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Index for job-handle lookup
CREATE INDEX IF NOT EXISTS idx_%s_job
    ON %s (job_id);

-- Index for claiming by state in creation order
CREATE INDEX IF NOT EXISTS idx_%s_state
    ON %s (state, created_at);
`,
		time.Now().Format(time.RFC3339),
		config.ConfigTable,
		config.ConfigTable, config.InitialVersion,
		config.WorkTable, config.ResourceTable,
		config.WorkTable, config.WorkTable,
		config.WorkTable, config.WorkTable,
	)
}
