package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteBusyTimeout = 5 * time.Second

	// WAL mode allows this many readers alongside the single writer.
	sqliteReaderConns = 4
)

// OpenSQLite opens the write handle for a SQLite database. The pool is
// capped at one connection so writes serialize in-process instead of
// surfacing as SQLITE_BUSY.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	path, err := prepareSQLiteFile(dbPath)
	if err != nil {
		return nil, err
	}

	// WAL for read concurrency, NORMAL sync as the durability tradeoff,
	// busy_timeout so brief lock contention waits instead of erroring.
	handle, err := sql.Open("sqlite3", sqliteDSN(path, "rwc", "&_journal_mode=WAL&_synchronous=NORMAL"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	return handle, nil
}

// OpenSQLiteReader opens a read-only handle over the same file. Readers never
// block the writer under WAL, so this pool carries several connections.
// journal_mode and synchronous are database-level settings owned by the
// writer and are not repeated here.
func OpenSQLiteReader(dbPath string) (*sql.DB, error) {
	handle, err := sql.Open("sqlite3", sqliteDSN(absSQLitePath(dbPath), "ro", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to open read-only database: %w", err)
	}
	handle.SetMaxOpenConns(sqliteReaderConns)
	handle.SetMaxIdleConns(sqliteReaderConns)
	return handle, nil
}

func sqliteDSN(path, mode, extra string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_mode=%s&_busy_timeout=%d&_cache=shared%s",
		path, mode, int(sqliteBusyTimeout/time.Millisecond), extra)
}

// prepareSQLiteFile resolves the path and makes sure the parent directory and
// the database file exist, so a read-only handle opened later does not fail
// on a missing file.
func prepareSQLiteFile(dbPath string) (string, error) {
	path := absSQLitePath(dbPath)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to prepare database path: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create database file: %w", err)
	}
	return path, file.Close()
}

func absSQLitePath(dbPath string) string {
	if dbPath == "" {
		return dbPath
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return dbPath
	}
	return abs
}
