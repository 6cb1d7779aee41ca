// Package store provides SQLite-backed tabular sources: loading tables (or
// constrained subsets of them) into immutable in-memory sources, and
// persisting sources back to tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// DB wraps a SQLite database used as a row source.
type DB struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
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
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// LoadTable materializes an entire table as a Source, in rowid order for
// deterministic row sequencing.
func (d *DB) LoadTable(ctx context.Context, table string) (*tabular.Source, error) {
	return d.LoadQuery(ctx, table, nil)
}

// LoadQuery materializes the rows of a table matching the given constraints.
// Constraints compile to a parameterized WHERE clause and are evaluated by
// SQLite; the resulting Source contains only matching rows, still in rowid
// order.
func (d *DB) LoadQuery(ctx context.Context, table string, where []tabular.Constraint) (*tabular.Source, error) {
	whereSQL, params, err := compileConstraints(where)
	if err != nil {
		return nil, fmt.Errorf("compile constraints: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY rowid ASC", quoteIdent(table), whereSQL)
	rows, err := d.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query table %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var data [][]value.Value
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make([]value.Value, len(columns))
		for i, raw := range values {
			v, err := sqlToValue(raw)
			if err != nil {
				return nil, fmt.Errorf("convert column %s: %w", columns[i], err)
			}
			row[i] = v
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	src, err := tabular.NewSource(columns, data)
	if err != nil {
		return nil, fmt.Errorf("build source from table %s: %w", table, err)
	}
	return src, nil
}

// SaveTable persists a Source as a table, replacing any existing table of
// the same name. Columns are created untyped; SQLite's dynamic typing keeps
// the stored values' kinds.
func (d *DB) SaveTable(ctx context.Context, table string, src *tabular.Source) error {
	fields := src.Fieldnames()
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quoteIdent(f)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fields)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	// Re-read rows through a full-width projection to keep the Source's
	// encapsulation intact.
	sel := tabular.Cols{Names: fields}
	q, err := src.Select(tabular.List{Inner: sel})
	if err != nil {
		return fmt.Errorf("project source: %w", err)
	}
	res, err := q.Execute(ctx)
	if err != nil {
		return fmt.Errorf("read source rows: %w", err)
	}
	list := res.(*tabular.ListResult)

	for i, rowVal := range list.Values {
		tuple := rowVal.(value.Tuple)
		params := make([]any, len(tuple))
		for j, v := range tuple {
			p, err := valueToParam(v)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, fields[j], err)
			}
			params[j] = p
		}
		if _, err := stmt.ExecContext(ctx, params...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// sqlToValue converts a database/sql scan value to an engine value.
func sqlToValue(v any) (value.Value, error) {
	switch val := v.(type) {
	case nil:
		return value.Null{}, nil
	case int64:
		return value.Int(val), nil
	case float64:
		return value.Float(val), nil
	case string:
		return value.String(val), nil
	case []byte:
		return value.String(string(val)), nil
	case bool:
		return value.Bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported SQL type: %T", v)
	}
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
