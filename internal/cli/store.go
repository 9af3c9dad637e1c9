package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
	"github.com/Stamhoofd/Stamhoofd-sub000/internal/config"
	_ "github.com/Stamhoofd/Stamhoofd-sub000/sqlitefold"
)

// Store runs compiled filters against a SQLite table.
type Store struct {
	db      *sql.DB
	table   string
	options filter.RenderOptions
}

// OpenStore opens the SQLite database at path. The config must use the SQLite
// dialect and name a table.
func OpenStore(path string, cfg config.Config) (*Store, error) {
	if path == "" {
		return nil, errors.New("no database path: set db in the config or pass --db")
	}
	if cfg.Table == "" {
		return nil, errors.New("no table: set table in the config")
	}
	if cfg.Dialect != filter.SQLite {
		return nil, fmt.Errorf("cannot execute %s SQL against SQLite", cfg.Dialect)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Store{db: db, table: cfg.Table, options: cfg.RenderOptions()}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Query renders the full SELECT for a condition and ordering.
func (s *Store) Query(cond filter.Condition, order filter.OrderBy) (string, []any) {
	buf := filter.Buffer{Options: s.options}
	buf.Str("SELECT * FROM ")
	buf.Ident(s.table)
	if ns := s.options.Namespace; ns != "" && ns != s.table {
		buf.Str(" AS ")
		buf.Ident(ns)
	}
	buf.Str(" WHERE ")
	buf.Frag(cond)
	if len(order) > 0 {
		buf.Str(" ")
		buf.Frag(order)
	}
	return string(buf.Text), buf.Args
}

// Select returns matching rows as column maps.
func (s *Store) Select(ctx context.Context, cond filter.Condition, order filter.OrderBy) ([]map[string]any, error) {
	text, args := s.Query(cond, order)

	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", text, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
