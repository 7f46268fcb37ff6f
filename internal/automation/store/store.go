// Package store provides the SQL persistence layer for the automation domain.
package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/syncsocial/syncsocial/internal/db"
)

// Store provides automation storage operations over a writer/reader pool.
type Store struct {
	db *sqlx.DB // writer
	ro *sqlx.DB // reader (read-only pool)
}

// New creates a store over an existing pool and initializes the schema.
func New(pool *db.Pool) (*Store, error) {
	s := &Store{db: pool.Writer(), ro: pool.Reader()}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying writer handle for shared access.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// DriverName reports the SQL driver in use.
func (s *Store) DriverName() string {
	return s.db.DriverName()
}
