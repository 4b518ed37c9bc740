// Package store persists notification rules, templates, gateway settings and
// the audit artifacts of every send.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/logger"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification/schema"

	"github.com/xeipuuv/gojsonschema"
)

// fieldsSchema constrains a rule's ordered parameter mappings.
const fieldsSchema = `{
	"type": "array",
	"items": {"type": "string", "minLength": 1}
}`

const ruleColumns = `id, name, disabled, notification_type, reference_doctype, field_name,
	date_field, days_in_advance, event, condition_expr, template, fields,
	attach_document_print, print_format, custom_attachment, attach, attach_from_field,
	file_name, backend, sender, set_property_after_alert, property_value`

// RuleCache invalidates the derived scheduled-rule index.
type RuleCache interface {
	Invalidate(ctx context.Context, ruleID string) error
}

// RuleStore manages notification rules.
type RuleStore struct {
	db       *sql.DB
	registry *schema.Registry
	cache    RuleCache
	logger   logger.Logger
}

func NewRuleStore(db *sql.DB, registry *schema.Registry, cache RuleCache, log logger.Logger) *RuleStore {
	return &RuleStore{
		db:       db,
		registry: registry,
		cache:    cache,
		logger:   log.WithFields(map[string]interface{}{"store": "rules"}),
	}
}

// Get loads one rule by ID.
func (s *RuleStore) Get(ctx context.Context, id string) (*models.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM whatsapp_notification_rules WHERE id = $1`, ruleColumns), id)
	return scanRule(row)
}

// ListScheduled returns all enabled rules driven by the daily tick.
func (s *RuleStore) ListScheduled(ctx context.Context) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM whatsapp_notification_rules
			WHERE disabled = FALSE AND event IN ($1, $2)`, ruleColumns),
		models.EventDaysBefore, models.EventDaysAfter)
	if err != nil {
		return nil, fmt.Errorf("list scheduled rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Save validates and upserts a rule.
func (s *RuleStore) Save(ctx context.Context, rule *models.Rule) error {
	if err := s.validate(ctx, rule); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(rule.Fields)
	if err != nil {
		return fmt.Errorf("marshal rule fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO whatsapp_notification_rules (
			id, name, disabled, notification_type, reference_doctype, field_name,
			date_field, days_in_advance, event, condition_expr, template, fields,
			attach_document_print, print_format, custom_attachment, attach, attach_from_field,
			file_name, backend, sender, set_property_after_alert, property_value
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, disabled = EXCLUDED.disabled,
			notification_type = EXCLUDED.notification_type,
			reference_doctype = EXCLUDED.reference_doctype, field_name = EXCLUDED.field_name,
			date_field = EXCLUDED.date_field, days_in_advance = EXCLUDED.days_in_advance,
			event = EXCLUDED.event, condition_expr = EXCLUDED.condition_expr,
			template = EXCLUDED.template, fields = EXCLUDED.fields,
			attach_document_print = EXCLUDED.attach_document_print,
			print_format = EXCLUDED.print_format, custom_attachment = EXCLUDED.custom_attachment,
			attach = EXCLUDED.attach, attach_from_field = EXCLUDED.attach_from_field,
			file_name = EXCLUDED.file_name, backend = EXCLUDED.backend, sender = EXCLUDED.sender,
			set_property_after_alert = EXCLUDED.set_property_after_alert,
			property_value = EXCLUDED.property_value`,
		rule.ID, rule.Name, rule.Disabled, rule.NotificationType, rule.ReferenceDoctype,
		rule.FieldName, rule.DateField, rule.DaysInAdvance, rule.Event, rule.Condition,
		rule.Template, fieldsJSON, rule.AttachDocumentPrint, rule.PrintFormat,
		rule.CustomAttachment, rule.Attach, rule.AttachFromField, rule.FileName,
		rule.Backend, rule.Sender, rule.SetPropertyAfterAlert, rule.PropertyValue)
	if err != nil {
		return fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return nil
}

// Delete removes a rule and invalidates the scheduled-rule index.
func (s *RuleStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM whatsapp_notification_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("rule cache invalidation failed", map[string]interface{}{
				"ruleId": id,
				"error":  err.Error(),
			})
		}
	}
	return nil
}

func (s *RuleStore) validate(ctx context.Context, rule *models.Rule) error {
	if rule.ReferenceDoctype == "" {
		return stderrors.NewRuleInvalidError("reference doctype is required")
	}

	if rule.NotificationType == models.TypeDocTypeEvent && rule.FieldName != "" {
		exists, err := s.registry.HasColumn(ctx, rule.ReferenceDoctype, rule.FieldName)
		if err != nil {
			return err
		}
		if !exists {
			return stderrors.NewFieldNotFoundError(rule.FieldName, rule.ReferenceDoctype)
		}
	}

	if rule.Scheduled() {
		if rule.DateField == "" {
			return stderrors.NewRuleInvalidError("scheduled rules need a date field")
		}
		exists, err := s.registry.HasColumn(ctx, rule.ReferenceDoctype, rule.DateField)
		if err != nil {
			return err
		}
		if !exists {
			return stderrors.NewFieldNotFoundError(rule.DateField, rule.ReferenceDoctype)
		}
	}

	if rule.CustomAttachment && rule.Attach == "" && rule.AttachFromField == "" {
		return stderrors.NewRuleInvalidError("either attach a file or add an attach-from field to send attachment")
	}

	if rule.SetPropertyAfterAlert != "" {
		exists, err := s.registry.HasColumn(ctx, rule.ReferenceDoctype, rule.SetPropertyAfterAlert)
		if err != nil {
			return err
		}
		if !exists {
			return stderrors.NewFieldNotFoundError(rule.SetPropertyAfterAlert, rule.ReferenceDoctype)
		}
	}

	return validateFields(rule.Fields)
}

func validateFields(fields []string) error {
	if fields == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(fieldsSchema),
		gojsonschema.NewGoLoader(fields),
	)
	if err != nil {
		return fmt.Errorf("validate rule fields: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return stderrors.NewRuleInvalidError(strings.Join(details, "; "))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var (
		rule       models.Rule
		fieldsJSON []byte
	)
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Disabled, &rule.NotificationType,
		&rule.ReferenceDoctype, &rule.FieldName, &rule.DateField, &rule.DaysInAdvance,
		&rule.Event, &rule.Condition, &rule.Template, &fieldsJSON,
		&rule.AttachDocumentPrint, &rule.PrintFormat, &rule.CustomAttachment,
		&rule.Attach, &rule.AttachFromField, &rule.FileName, &rule.Backend,
		&rule.Sender, &rule.SetPropertyAfterAlert, &rule.PropertyValue,
	)
	if err != nil {
		return nil, err
	}

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rule.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal rule fields: %w", err)
		}
	}
	return &rule, nil
}
