// Package store provides the narrow execution contract the query
// pipeline runs against, plus the SQLite-backed implementation.
//
// The pipeline only ever sees the Client and Cursor interfaces: it
// hands over generated SQL with ordered arguments and pulls raw
// records back one at a time. Connection management, pragmas, and
// retry policy all live behind the Client.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Client executes generated queries against one store.
type Client interface {
	// ExecuteQuery opens a blocking cursor over the query results.
	// The container names the table/collection queried; the SQL
	// already references it, the name is for diagnostics.
	ExecuteQuery(container, query string, args []any) (Cursor, error)

	// ExecuteQueryContext is the cancellable variant.
	ExecuteQueryContext(ctx context.Context, container, query string, args []any) (Cursor, error)
}

// Cursor is a single-pass pull cursor over raw records.
type Cursor interface {
	// Next returns the next record, or false when exhausted. An error
	// ends iteration; no further Next calls are valid after one.
	Next() (Record, bool, error)

	// Close releases the underlying resources. Safe to call more
	// than once.
	Close() error
}

// Store is the SQLite-backed Client. Uses WAL mode for concurrent
// read access during writes.
type Store struct {
	db *sql.DB
}

var _ Client = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas automatically; idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection
	// avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for schema setup and seeding.
// Prefer the Client methods for query execution.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ExecuteQuery implements Client.
func (s *Store) ExecuteQuery(container, query string, args []any) (Cursor, error) {
	return s.ExecuteQueryContext(context.Background(), container, query, args)
}

// ExecuteQueryContext implements Client.
func (s *Store) ExecuteQueryContext(ctx context.Context, container, query string, args []any) (Cursor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query against %s: %w", container, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	return &rowsCursor{rows: rows, columns: columns}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// rowsCursor adapts sql.Rows to the Cursor contract, scanning each
// row into a positional record.
type rowsCursor struct {
	rows    *sql.Rows
	columns []string
	closed  bool
}

func (c *rowsCursor) Next() (Record, bool, error) {
	if c.closed {
		return nil, false, nil
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		c.Close()
		return nil, false, err
	}
	values := make([]any, len(c.columns))
	scan := make([]any, len(c.columns))
	for i := range values {
		scan[i] = &values[i]
	}
	if err := c.rows.Scan(scan...); err != nil {
		return nil, false, fmt.Errorf("scan row: %w", err)
	}
	// TEXT columns scan as []byte through the sqlite driver; widen to
	// string so records compare and convert uniformly.
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return newRowRecord(c.columns, values), true, nil
}

func (c *rowsCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}
