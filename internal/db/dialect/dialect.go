// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL portability.
package dialect

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// BoolToInt converts a boolean to an integer for SQL storage.
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// SkipLocked returns the row-lock clause for claim queries.
//
//	Postgres: FOR UPDATE SKIP LOCKED
//	SQLite:   "" (single-writer connection serializes claims)
func SkipLocked(driver string) string {
	if IsPostgres(driver) {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}
