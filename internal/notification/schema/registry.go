// Package schema answers "does field X exist on type Y" against the live
// database schema, decoupling rule validation and write-back coercion from
// any ORM.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// identifierPattern guards table/column names that end up interpolated into
// dynamic SQL.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var numericTypes = map[string]bool{
	"smallint":         true,
	"integer":          true,
	"bigint":           true,
	"numeric":          true,
	"decimal":          true,
	"real":             true,
	"double precision": true,
}

// Registry looks up table and column metadata from information_schema.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// ValidIdentifier reports whether name is safe to use as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// HasTable reports whether the table exists in the public schema.
func (r *Registry) HasTable(ctx context.Context, table string) (bool, error) {
	if !ValidIdentifier(table) {
		return false, fmt.Errorf("invalid table name: %q", table)
	}

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1`,
		table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("table lookup failed: %w", err)
	}
	return count > 0, nil
}

// HasColumn reports whether the column exists on the table.
func (r *Registry) HasColumn(ctx context.Context, table, column string) (bool, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return false, fmt.Errorf("invalid identifier: %q.%q", table, column)
	}

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("column lookup failed: %w", err)
	}
	return count > 0, nil
}

// ColumnType returns the data type of the column, or sql.ErrNoRows if absent.
func (r *Registry) ColumnType(ctx context.Context, table, column string) (string, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return "", fmt.Errorf("invalid identifier: %q.%q", table, column)
	}

	var dataType string
	err := r.db.QueryRowContext(ctx,
		`SELECT data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2`,
		table, column,
	).Scan(&dataType)
	if err != nil {
		return "", err
	}
	return dataType, nil
}

// IsNumeric reports whether a Postgres data type holds numbers.
func IsNumeric(dataType string) bool {
	return numericTypes[dataType]
}
