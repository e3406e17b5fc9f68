package migrator

import "strings"

// ResolveDialect maps a live connection's metadata to one of the supported
// dialects. It matches the server's reported product string first and falls
// back to the driver name. Returns ErrUnsupportedDialect if nothing matches.
// Pure mapping, no side effects.
func ResolveDialect(meta ConnectionMetadata) (Dialect, error) {
	product := strings.ToLower(meta.Product)

	switch {
	case strings.Contains(product, "postgresql"):
		return DialectPostgres, nil
	case strings.Contains(product, "mariadb"), strings.Contains(product, "mysql"):
		return DialectMySQL, nil
	case strings.Contains(product, "sqlite"):
		return DialectSQLite, nil
	}

	switch strings.ToLower(meta.DriverName) {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	}

	return "", ErrUnsupportedDialect
}
