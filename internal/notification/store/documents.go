package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/notification/document"
	"whatsapp-dispatch/internal/notification/schema"
)

// DocumentStore reads business records from their per-doctype tables.
type DocumentStore struct {
	db       *sql.DB
	registry *schema.Registry
}

func NewDocumentStore(db *sql.DB, registry *schema.Registry) *DocumentStore {
	return &DocumentStore{db: db, registry: registry}
}

// Get loads one record with all of its columns.
func (s *DocumentStore) Get(ctx context.Context, doctype, name string) (*document.Document, error) {
	if err := s.checkTable(ctx, doctype); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE name = $1`, doctype), name)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", doctype, name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", doctype, err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("scan %s %s: %w", doctype, name, err)
	}

	fields := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		fields[col] = values[i]
	}
	return &document.Document{Doctype: doctype, Name: name, Fields: fields}, nil
}

// NamesDueOn lists record names whose date field falls inside [start, end].
func (s *DocumentStore) NamesDueOn(ctx context.Context, doctype, dateField string, start, end time.Time) ([]string, error) {
	if err := s.checkTable(ctx, doctype); err != nil {
		return nil, err
	}
	if !schema.ValidIdentifier(dateField) {
		return nil, stderrors.NewFieldNotFoundError(dateField, doctype)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE %s BETWEEN $1 AND $2`, doctype, dateField),
		start, end)
	if err != nil {
		return nil, fmt.Errorf("list %s due between %s and %s: %w", doctype, start, end, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DefaultPrintFormat returns the doctype's configured print format, or "".
func (s *DocumentStore) DefaultPrintFormat(ctx context.Context, doctype string) (string, error) {
	var format string
	err := s.db.QueryRowContext(ctx, `
		SELECT default_print_format FROM doctype_defaults WHERE doctype = $1`, doctype).
		Scan(&format)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("default print format of %s: %w", doctype, err)
	}
	return format, nil
}

func (s *DocumentStore) checkTable(ctx context.Context, doctype string) error {
	if !schema.ValidIdentifier(doctype) {
		return stderrors.NewRuleInvalidError(fmt.Sprintf("invalid doctype %q", doctype))
	}
	exists, err := s.registry.HasTable(ctx, doctype)
	if err != nil {
		return err
	}
	if !exists {
		return stderrors.NewRuleInvalidError(fmt.Sprintf("no table for doctype %q", doctype))
	}
	return nil
}
