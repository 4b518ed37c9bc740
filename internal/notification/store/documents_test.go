package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/notification/schema"
)

func expectTableExists(mock sqlmock.Sqlmock, table string) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema.tables`).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
}

func TestDocumentStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTableExists(mock, "invoices")
	mock.ExpectQuery(`SELECT \* FROM invoices WHERE name = \$1`).
		WithArgs("INV-001").
		WillReturnRows(sqlmock.NewRows([]string{"name", "customer_name", "total", "customer_phone"}).
			AddRow("INV-001", []byte("Acme Corp"), 1250.50, []byte("+5511999998888")))

	store := NewDocumentStore(db, schema.NewRegistry(db))
	doc, err := store.Get(context.Background(), "invoices", "INV-001")

	require.NoError(t, err)
	assert.Equal(t, "invoices", doc.Doctype)
	assert.Equal(t, "Acme Corp", doc.GetString("customer_name"))
	assert.Equal(t, "+5511999998888", doc.GetString("customer_phone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_Get_RejectsBadDoctype(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewDocumentStore(db, schema.NewRegistry(db))
	_, err = store.Get(context.Background(), "invoices; DROP TABLE users", "INV-001")

	assert.Equal(t, stderrors.ErrCodeRuleInvalid, stderrors.CodeOf(err))
}

func TestDocumentStore_NamesDueOn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)

	expectTableExists(mock, "memberships")
	mock.ExpectQuery(`SELECT name FROM memberships WHERE renewal_date BETWEEN \$1 AND \$2`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("MEM-001").AddRow("MEM-002"))

	store := NewDocumentStore(db, schema.NewRegistry(db))
	names, err := store.NamesDueOn(context.Background(), "memberships", "renewal_date", start, end)

	require.NoError(t, err)
	assert.Equal(t, []string{"MEM-001", "MEM-002"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_DefaultPrintFormat(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT default_print_format FROM doctype_defaults WHERE doctype = \$1`).
		WithArgs("invoices").
		WillReturnRows(sqlmock.NewRows([]string{"default_print_format"}).AddRow("Tax Invoice"))
	mock.ExpectQuery(`SELECT default_print_format FROM doctype_defaults WHERE doctype = \$1`).
		WithArgs("memberships").
		WillReturnRows(sqlmock.NewRows([]string{"default_print_format"}))

	store := NewDocumentStore(db, schema.NewRegistry(db))

	format, err := store.DefaultPrintFormat(context.Background(), "invoices")
	require.NoError(t, err)
	assert.Equal(t, "Tax Invoice", format)

	format, err = store.DefaultPrintFormat(context.Background(), "memberships")
	require.NoError(t, err)
	assert.Empty(t, format)
}
