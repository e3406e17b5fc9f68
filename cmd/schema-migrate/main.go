// Command schema-migrate advances a database schema to the latest known
// version. It is the explicit administrative entry point for migration runs;
// servers that self-migrate on startup call the same runner through the
// library API.
//
// Usage:
//
//	schema-migrate -driver postgres -dsn "postgres://..." -steps ./upgrades
//
// Exit code 0 means the schema is at the latest version, including when there
// was nothing to do. Nonzero means the run failed or lost a version race
// repeatedly; the message on standard error says which.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/coordinator"
	"github.com/getpup/schema-migrator/metrics"
	"github.com/getpup/schema-migrator/pkg/version"
	queuememory "github.com/getpup/schema-migrator/queue/memory"
	"github.com/getpup/schema-migrator/registry"
	"github.com/getpup/schema-migrator/runner"
	"github.com/getpup/schema-migrator/store"
	"github.com/getpup/schema-migrator/store/mysql"
	"github.com/getpup/schema-migrator/store/postgres"
	"github.com/getpup/schema-migrator/store/sqlite"
)

func main() {
	var (
		driver          = flag.String("driver", "postgres", "Database driver: postgres, mysql, or sqlite3")
		dsn             = flag.String("dsn", "", "Database connection string (required)")
		stepsDir        = flag.String("steps", "upgrades", "Directory of upgrade step files")
		configTable     = flag.String("config-table", "schema_config", "Name of the config table holding the version row")
		bootstrap       = flag.Bool("bootstrap", false, "Create the config table and seed the version row for a fresh database")
		conflictRetries = flag.Int("conflict-retries", 3, "How often to re-read the ledger after a version conflict")
		metricsAddr     = flag.String("metrics-addr", "", "Optional address for the Prometheus metrics endpoint")
	)
	flag.Parse()

	log.Printf("Starting schema-migrate v%s", version.Version)

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: -dsn is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	if err := run(ctx, *driver, *dsn, *stepsDir, *configTable, *bootstrap, *conflictRetries, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Schema is at the latest version")
}

func run(ctx context.Context, driver, dsn, stepsDir, configTable string, bootstrap bool, conflictRetries int, metricsAddr string) error {
	reg, err := registry.LoadDir(os.DirFS("."), stepsDir)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	dialect, err := migrator.ResolveDialect(migrator.ConnectionMetadata{
		Product:    serverProduct(ctx, db),
		DriverName: driver,
	})
	if err != nil {
		return err
	}

	st, err := openStore(dialect, db, configTable)
	if err != nil {
		return err
	}

	if bootstrap {
		if err := st.Bootstrap(ctx, reg.LowestVersion()); err != nil {
			return fmt.Errorf("failed to bootstrap ledger: %w", err)
		}
	}

	if metricsAddr != "" {
		server := metrics.NewServer(metricsAddr)
		server.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	logger := migrator.NewSlogLogger(nil)
	r := runner.New(runner.Config{
		Store:              st,
		Registry:           reg,
		Dialect:            dialect,
		Coordinator:        coordinator.New(coordinator.Config{Queue: queuememory.New(), Logger: logger}),
		MaxConflictRetries: conflictRetries,
		Logger:             logger,
	})

	return r.Run(ctx)
}

// serverProduct asks the server for its product string, best-effort.
// SQLite has no server; the driver-name fallback covers it.
func serverProduct(ctx context.Context, db *sql.DB) string {
	var product string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&product); err != nil {
		return ""
	}
	return product
}

func openStore(dialect migrator.Dialect, db *sql.DB, configTable string) (store.Store, error) {
	switch dialect {
	case migrator.DialectPostgres:
		return postgres.NewWithConfig(db, postgres.Config{ConfigTable: configTable}), nil
	case migrator.DialectMySQL:
		return mysql.NewWithConfig(db, mysql.Config{ConfigTable: configTable}), nil
	case migrator.DialectSQLite:
		return sqlite.NewWithConfig(db, sqlite.Config{ConfigTable: configTable}), nil
	}
	return nil, fmt.Errorf("no store for dialect %s: %w", dialect, migrator.ErrUnsupportedDialect)
}
