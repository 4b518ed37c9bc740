package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "whatsapp-dispatch/internal/common/errors"
)

func TestTemplateStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT name, actual_name, language_code, header_type, body\s+FROM whatsapp_templates WHERE name = \$1`).
		WithArgs("invoice-alert").
		WillReturnRows(sqlmock.NewRows([]string{"name", "actual_name", "language_code", "header_type", "body"}).
			AddRow("invoice-alert", "invoice_alert", "en", "", "Hello {{1}}"))

	store := NewTemplateStore(db)
	tpl, err := store.Get(context.Background(), "invoice-alert")

	require.NoError(t, err)
	assert.Equal(t, "invoice_alert", tpl.ActualName)
	assert.Equal(t, "Hello {{1}}", tpl.Body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateStore_Get_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM whatsapp_templates`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"name", "actual_name", "language_code", "header_type", "body"}))

	store := NewTemplateStore(db)
	_, err = store.Get(context.Background(), "ghost")

	assert.Equal(t, stderrors.ErrCodeTemplateNotFound, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsConfigurationError(err))
}
