package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"whatsapp-dispatch/internal/common/database"
	"whatsapp-dispatch/internal/common/logger"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification/schema"

	"github.com/google/uuid"
)

// LogIndexer mirrors log entries into a search index.
type LogIndexer interface {
	Index(ctx context.Context, index, id string, body []byte) error
}

var _ LogIndexer = (*database.ElasticsearchClient)(nil)

// Recorder persists the audit artifacts of a dispatch: the sent message,
// the per-attempt log, and the optional write-back to the source record.
type Recorder struct {
	db       *sql.DB
	registry *schema.Registry
	indexer  LogIndexer
	logIndex string
	logger   logger.Logger
	now      func() time.Time
}

func NewRecorder(db *sql.DB, registry *schema.Registry, indexer LogIndexer, logIndex string, log logger.Logger) *Recorder {
	return &Recorder{
		db:       db,
		registry: registry,
		indexer:  indexer,
		logIndex: logIndex,
		logger:   log.WithFields(map[string]interface{}{"store": "outcome"}),
		now:      time.Now,
	}
}

// RecordMessage inserts the sent-message record and returns its generated ID.
func (r *Recorder) RecordMessage(ctx context.Context, msg *models.Message) (string, error) {
	msg.ID = uuid.New().String()
	msg.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whatsapp_messages (
			id, type, recipient, message, message_type, message_id, content_type,
			template, template_parameters, reference_doctype, reference_name, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		msg.ID, msg.Type, msg.To, msg.Message, msg.MessageType, msg.MessageID,
		msg.ContentType, msg.Template, msg.TemplateParameters,
		msg.ReferenceDoctype, msg.ReferenceName, msg.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("record message: %w", err)
	}
	return msg.ID, nil
}

// RecordLog inserts the per-attempt notification log. The provider response
// is kept verbatim as JSONB so failures stay diagnosable.
func (r *Recorder) RecordLog(ctx context.Context, entry *models.LogEntry) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = r.now()

	meta, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("marshal log response: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO whatsapp_notification_logs (
			id, template, success, meta, error, phone_number, message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.Template, entry.Success, meta, entry.Error,
		entry.PhoneNumber, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record notification log: %w", err)
	}

	r.mirrorLog(ctx, entry)
	return nil
}

// mirrorLog ships the entry to the search index, best effort.
func (r *Recorder) mirrorLog(ctx context.Context, entry *models.LogEntry) {
	if r.indexer == nil || r.logIndex == "" {
		return
	}

	body, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn("log entry not indexable", map[string]interface{}{
			"logId": entry.ID,
			"error": err.Error(),
		})
		return
	}
	if err := r.indexer.Index(ctx, r.logIndex, entry.ID, body); err != nil {
		r.logger.Warn("log mirror failed", map[string]interface{}{
			"logId": entry.ID,
			"error": err.Error(),
		})
	}
}

// WriteBack sets the rule's configured property on the source record after a
// successful send. Numeric columns get integer coercion, with unparseable
// values falling back to zero.
func (r *Recorder) WriteBack(ctx context.Context, doctype, name, field, value string) error {
	if !schema.ValidIdentifier(doctype) || !schema.ValidIdentifier(field) {
		return fmt.Errorf("invalid write-back target: %q.%q", doctype, field)
	}

	dataType, err := r.registry.ColumnType(ctx, doctype, field)
	if err != nil {
		return fmt.Errorf("write-back column type: %w", err)
	}

	var arg interface{} = value
	if schema.IsNumeric(dataType) {
		n, err := strconv.Atoi(value)
		if err != nil {
			n = 0
		}
		arg = n
	}

	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE name = $2`, doctype, field),
		arg, name)
	if err != nil {
		return fmt.Errorf("write back %s.%s: %w", doctype, field, err)
	}
	return nil
}
