package db

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Pool bundles a writer handle and a reader handle over the same database.
//
// For SQLite the writer is a single-connection pool (serialized writes) and
// the reader is a multi-connection read-only pool that benefits from WAL
// concurrency. For PostgreSQL both handles point at the same pool, since the
// server handles concurrency natively.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewSQLitePool opens writer and reader handles for a SQLite database file.
func NewSQLitePool(dbPath string) (*Pool, error) {
	writer, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	reader, err := OpenSQLiteReader(dbPath)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	return &Pool{
		writer: sqlx.NewDb(writer, "sqlite3"),
		reader: sqlx.NewDb(reader, "sqlite3"),
	}, nil
}

// NewPostgresPool opens a PostgreSQL pool. Writer and reader share the
// underlying connection pool.
func NewPostgresPool(dsn string) (*Pool, error) {
	conn, err := OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	shared := sqlx.NewDb(conn, "pgx")
	return &Pool{writer: shared, reader: shared}, nil
}

// NewPoolFromDB wraps existing handles; used by tests with in-memory SQLite.
func NewPoolFromDB(writer, reader *sql.DB, driverName string) *Pool {
	p := &Pool{writer: sqlx.NewDb(writer, driverName)}
	if reader != nil {
		p.reader = sqlx.NewDb(reader, driverName)
	} else {
		p.reader = p.writer
	}
	return p
}

// Writer returns the handle to use for writes and transactions.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the handle to use for read-only queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// DriverName reports the underlying driver ("sqlite3" or "pgx").
func (p *Pool) DriverName() string { return p.writer.DriverName() }

// Close closes both handles.
func (p *Pool) Close() error {
	var firstErr error
	if err := p.writer.Close(); err != nil {
		firstErr = err
	}
	if p.reader != p.writer {
		if err := p.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
