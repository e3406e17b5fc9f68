// Command bootstrap-gen generates SQL files that create the engine's own
// infrastructure tables: the config table holding the schema version and a
// work-table template for backfill-requiring upgrade steps.
//
// Usage:
//
//	go run github.com/getpup/schema-migrator/cmd/bootstrap-gen -output bootstrap -filename init.sql
//
// Generate bootstrap files for different database adapters:
//
//	go run github.com/getpup/schema-migrator/cmd/bootstrap-gen -adapter postgres -output bootstrap
//	go run github.com/getpup/schema-migrator/cmd/bootstrap-gen -adapter mysql -output bootstrap
//	go run github.com/getpup/schema-migrator/cmd/bootstrap-gen -adapter sqlite -output bootstrap
//
// Customize table names and the seed version:
//
//	go run github.com/getpup/schema-migrator/cmd/bootstrap-gen -config-table schema_config -initial-version 44
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/schema-migrator/pkg/bootstrap"
)

func main() {
	var (
		adapter        = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder   = flag.String("output", "bootstrap", "Output folder for the SQL file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		configTable    = flag.String("config-table", "schema_config", "Name of the config table")
		workTable      = flag.String("work-table", "resource_backfill_work", "Name of the example work table")
		resourceTable  = flag.String("resource-table", "resource", "Owning table the work table references")
		initialVersion = flag.Int("initial-version", 1, "Schema version the config table is seeded with")
	)

	flag.Parse()

	config := bootstrap.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.ConfigTable = *configTable
	config.WorkTable = *workTable
	config.ResourceTable = *resourceTable
	config.InitialVersion = *initialVersion

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	var err error
	switch *adapter {
	case "postgres":
		err = bootstrap.GeneratePostgres(&config)
	case "mysql":
		err = bootstrap.GenerateMySQL(&config)
	case "sqlite":
		err = bootstrap.GenerateSQLite(&config)
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, mysql, sqlite\n", *adapter)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating bootstrap file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s bootstrap file: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
}
