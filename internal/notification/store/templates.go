package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/models"
)

// TemplateStore reads approved message templates.
type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Get loads a template by its local name.
func (s *TemplateStore) Get(ctx context.Context, name string) (*models.Template, error) {
	var tpl models.Template
	err := s.db.QueryRowContext(ctx, `
		SELECT name, actual_name, language_code, header_type, body
		FROM whatsapp_templates WHERE name = $1`, name).
		Scan(&tpl.Name, &tpl.ActualName, &tpl.LanguageCode, &tpl.HeaderType, &tpl.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewTemplateNotFoundError(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	return &tpl, nil
}
