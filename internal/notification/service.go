// Package notification runs the dispatch pipeline: rule checks, condition
// evaluation, template rendering, attachment resolution and the provider call,
// with exactly one log entry written per dispatch attempt.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/logger"
	"whatsapp-dispatch/internal/common/metrics"
	"whatsapp-dispatch/internal/common/observability"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification/condition"
	"whatsapp-dispatch/internal/notification/dispatch"
	"whatsapp-dispatch/internal/notification/document"
	"whatsapp-dispatch/internal/notification/phone"
	"whatsapp-dispatch/internal/notification/template"
)

// DocumentSource loads the business record a rule fires for.
type DocumentSource interface {
	Get(ctx context.Context, doctype, name string) (*document.Document, error)
}

// TemplateSource loads message templates by name.
type TemplateSource interface {
	Get(ctx context.Context, name string) (*models.Template, error)
}

// SettingsSource loads gateway credentials.
type SettingsSource interface {
	Evolution(ctx context.Context, name string) (*dispatch.EvolutionSettings, error)
	Meta(ctx context.Context) (*dispatch.MetaSettings, error)
}

// AttachmentResolver builds the media payload a rule configures.
type AttachmentResolver interface {
	Resolve(ctx context.Context, rule *models.Rule, doc *document.Document) (*dispatch.Attachment, error)
}

// EvolutionSender posts messages to an Evolution gateway.
type EvolutionSender interface {
	Send(ctx context.Context, settings dispatch.EvolutionSettings, req dispatch.EvolutionRequest) (*dispatch.Result, error)
}

// MetaSender posts template messages to the Meta cloud API.
type MetaSender interface {
	SendTemplate(ctx context.Context, settings dispatch.MetaSettings, req dispatch.MetaTemplateRequest) (*dispatch.Result, error)
}

// OutcomeRecorder persists the audit artifacts of a dispatch.
type OutcomeRecorder interface {
	RecordMessage(ctx context.Context, msg *models.Message) (string, error)
	RecordLog(ctx context.Context, entry *models.LogEntry) error
	WriteBack(ctx context.Context, doctype, name, field, value string) error
}

// Service is the notification dispatch pipeline.
type Service struct {
	documents     DocumentSource
	templates     TemplateSource
	settings      SettingsSource
	attachments   AttachmentResolver
	evolution     EvolutionSender
	meta          MetaSender
	recorder      OutcomeRecorder
	obs           *observability.Observability
	defaultSender string
	logger        logger.Logger
}

func NewService(
	documents DocumentSource,
	templates TemplateSource,
	settings SettingsSource,
	attachments AttachmentResolver,
	evolution EvolutionSender,
	meta MetaSender,
	recorder OutcomeRecorder,
	obs *observability.Observability,
	defaultSender string,
	log logger.Logger,
) *Service {
	return &Service{
		documents:     documents,
		templates:     templates,
		settings:      settings,
		attachments:   attachments,
		evolution:     evolution,
		meta:          meta,
		recorder:      recorder,
		obs:           obs,
		defaultSender: defaultSender,
		logger:        log.WithFields(map[string]interface{}{"component": "notification-service"}),
	}
}

// SendOption adjusts a single dispatch run.
type SendOption func(*sendConfig)

type sendConfig struct {
	recipient string
}

// WithRecipient overrides the number read from the rule's phone field.
func WithRecipient(number string) SendOption {
	return func(c *sendConfig) { c.recipient = number }
}

// SendToDocument runs the full pipeline for one rule and one record.
//
// Configuration problems (missing template, phone field, gateway settings)
// abort before any provider call and produce no log entry. Once the guarded
// send phase starts, exactly one log entry is written whatever happens.
func (s *Service) SendToDocument(ctx context.Context, rule *models.Rule, docName string, opts ...SendOption) error {
	var cfg sendConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if rule.Disabled {
		return nil
	}

	doc, err := s.documents.Get(ctx, rule.ReferenceDoctype, docName)
	if err != nil {
		return fmt.Errorf("load %s %s: %w", rule.ReferenceDoctype, docName, err)
	}

	ok, err := condition.Evaluate(ctx, rule.Condition, doc)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debug("condition not met, skipping", map[string]interface{}{
			"rule":     rule.Name,
			"document": docName,
		})
		return nil
	}

	number := cfg.recipient
	if number == "" {
		if rule.FieldName == "" {
			return stderrors.NewPhoneNumberMissingError(
				fmt.Sprintf("rule %s has no phone field configured", rule.Name))
		}
		number = doc.GetString(rule.FieldName)
	}
	if number == "" {
		return stderrors.NewPhoneNumberMissingError(
			fmt.Sprintf("%s %s has no value in %s", rule.ReferenceDoctype, docName, rule.FieldName))
	}
	number = phone.Format(number)

	tpl, err := s.templates.Get(ctx, rule.Template)
	if err != nil {
		return err
	}

	params := template.Params(doc, rule.Fields)
	message := template.Render(tpl.Body, params)

	switch rule.Backend {
	case dispatch.BackendEvolution:
		sender := rule.Sender
		if sender == "" {
			sender = s.defaultSender
		}
		settings, err := s.settings.Evolution(ctx, sender)
		if err != nil {
			return err
		}
		s.sendEvolution(ctx, rule, doc, *settings, number, message, params)
		return nil
	case dispatch.BackendMeta:
		settings, err := s.settings.Meta(ctx)
		if err != nil {
			return err
		}
		s.sendMeta(ctx, rule, doc, *settings, tpl, number, message, params)
		return nil
	default:
		return stderrors.NewRuleInvalidError(fmt.Sprintf("unknown backend %q", rule.Backend))
	}
}

// SendSimpleTemplate pushes one template to a list of recipients through the
// Meta backend, without a source record. Each recipient gets its own log entry.
func (s *Service) SendSimpleTemplate(ctx context.Context, templateName string, recipients []string) error {
	tpl, err := s.templates.Get(ctx, templateName)
	if err != nil {
		return err
	}
	settings, err := s.settings.Meta(ctx)
	if err != nil {
		return err
	}

	for _, recipient := range recipients {
		number := phone.Format(recipient)
		entry := &models.LogEntry{
			Template:    tpl.Name,
			PhoneNumber: number,
			Message:     tpl.Body,
		}

		result, err := s.meta.SendTemplate(ctx, *settings, dispatch.MetaTemplateRequest{
			To:           number,
			TemplateName: tpl.ActualName,
			LanguageCode: tpl.LanguageCode,
		})
		s.applyResult(ctx, entry, result, err, dispatch.BackendMeta)

		if entry.Success {
			s.recordMessage(ctx, &models.Message{
				Type:        "Outgoing",
				To:          number,
				Message:     tpl.Body,
				MessageType: "WhatsApp",
				MessageID:   result.MessageID,
				ContentType: result.ContentType,
				Template:    tpl.Name,
			})
		}
		s.recordLog(ctx, entry)
	}
	return nil
}

// sendEvolution runs the guarded send phase for the gateway backend. The log
// entry write is deferred so attachment and transport failures still leave
// their audit trail.
func (s *Service) sendEvolution(ctx context.Context, rule *models.Rule, doc *document.Document,
	settings dispatch.EvolutionSettings, number, message string, params []string) {

	start := time.Now()
	entry := &models.LogEntry{
		Template:    rule.Template,
		PhoneNumber: number,
		Message:     message,
	}
	defer func() {
		s.recordLog(ctx, entry)
		s.observeDispatch(ctx, dispatch.BackendEvolution, entry.Success, time.Since(start))
	}()

	att, err := s.attachments.Resolve(ctx, rule, doc)
	if err != nil {
		s.captureFailure(entry, dispatch.BackendEvolution, err)
		return
	}

	result, err := s.evolution.Send(ctx, settings, dispatch.EvolutionRequest{
		Number:     number,
		Text:       message,
		Attachment: att,
	})
	s.applyResult(ctx, entry, result, err, dispatch.BackendEvolution)
	if !entry.Success {
		return
	}

	s.recordMessage(ctx, &models.Message{
		Type:               "Outgoing",
		To:                 number,
		Message:            message,
		MessageType:        "WhatsApp",
		MessageID:          result.MessageID,
		ContentType:        result.ContentType,
		Template:           rule.Template,
		TemplateParameters: marshalParams(params),
		ReferenceDoctype:   rule.ReferenceDoctype,
		ReferenceName:      doc.Name,
	})
	metrics.NotificationsSent.WithLabelValues(dispatch.BackendEvolution, result.ContentType).Inc()
	s.writeBack(ctx, rule, doc)
}

// sendMeta runs the guarded send phase for the cloud-API backend.
func (s *Service) sendMeta(ctx context.Context, rule *models.Rule, doc *document.Document,
	settings dispatch.MetaSettings, tpl *models.Template, number, message string, params []string) {

	start := time.Now()
	entry := &models.LogEntry{
		Template:    rule.Template,
		PhoneNumber: number,
		Message:     message,
	}
	defer func() {
		s.recordLog(ctx, entry)
		s.observeDispatch(ctx, dispatch.BackendMeta, entry.Success, time.Since(start))
	}()

	result, err := s.meta.SendTemplate(ctx, settings, dispatch.MetaTemplateRequest{
		To:           number,
		TemplateName: tpl.ActualName,
		LanguageCode: tpl.LanguageCode,
		Parameters:   params,
		ContentType:  contentTypeForHeader(tpl.HeaderType),
	})
	s.applyResult(ctx, entry, result, err, dispatch.BackendMeta)
	if !entry.Success {
		return
	}

	s.recordMessage(ctx, &models.Message{
		Type:               "Outgoing",
		To:                 number,
		Message:            message,
		MessageType:        "WhatsApp",
		MessageID:          result.MessageID,
		ContentType:        result.ContentType,
		Template:           rule.Template,
		TemplateParameters: marshalParams(params),
		ReferenceDoctype:   rule.ReferenceDoctype,
		ReferenceName:      doc.Name,
	})
	metrics.NotificationsSent.WithLabelValues(dispatch.BackendMeta, result.ContentType).Inc()
	s.writeBack(ctx, rule, doc)
}

// applyResult folds a provider call outcome into the log entry.
func (s *Service) applyResult(ctx context.Context, entry *models.LogEntry, result *dispatch.Result, err error, backend string) {
	if err != nil {
		s.captureFailure(entry, backend, err)
		return
	}
	entry.Success = result.Success
	entry.Response = result.Response
	if !result.Success {
		entry.Error = result.ErrorMessage
		metrics.NotificationsFailed.WithLabelValues(backend, string(stderrors.ErrCodeProviderRejected)).Inc()
		s.logger.Warn("notification rejected", map[string]interface{}{
			"backend": backend,
			"phone":   entry.PhoneNumber,
			"error":   entry.Error,
		})
	}
}

func (s *Service) captureFailure(entry *models.LogEntry, backend string, err error) {
	entry.Error = err.Error()
	code := stderrors.CodeOf(err)
	if code == "" {
		code = stderrors.ErrCodeConnectionFailed
	}
	metrics.NotificationsFailed.WithLabelValues(backend, string(code)).Inc()
	s.logger.WithError(err).Error("notification send failed", map[string]interface{}{
		"backend": backend,
		"phone":   entry.PhoneNumber,
	})
}

func (s *Service) recordLog(ctx context.Context, entry *models.LogEntry) {
	if err := s.recorder.RecordLog(ctx, entry); err != nil {
		s.logger.WithError(err).Error("notification log write failed", map[string]interface{}{
			"phone": entry.PhoneNumber,
		})
	}
}

func (s *Service) recordMessage(ctx context.Context, msg *models.Message) {
	if _, err := s.recorder.RecordMessage(ctx, msg); err != nil {
		s.logger.WithError(err).Error("sent message record failed", map[string]interface{}{
			"phone": msg.To,
		})
	}
}

// writeBack applies the rule's post-send property update. Failure here does
// not undo the already-completed send, so it only logs.
func (s *Service) writeBack(ctx context.Context, rule *models.Rule, doc *document.Document) {
	if rule.SetPropertyAfterAlert == "" {
		return
	}
	err := s.recorder.WriteBack(ctx, rule.ReferenceDoctype, doc.Name,
		rule.SetPropertyAfterAlert, rule.PropertyValue)
	if err != nil {
		s.logger.WithError(err).Error("post-send write-back failed", map[string]interface{}{
			"doctype": rule.ReferenceDoctype,
			"name":    doc.Name,
			"field":   rule.SetPropertyAfterAlert,
		})
	}
}

func (s *Service) observeDispatch(ctx context.Context, backend string, success bool, elapsed time.Duration) {
	metrics.DispatchDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if s.obs == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	s.obs.RecordDispatch(ctx, backend, status)
	s.obs.RecordDispatchDuration(ctx, elapsed, backend)
}

func contentTypeForHeader(headerType string) string {
	switch strings.ToUpper(headerType) {
	case "DOCUMENT":
		return dispatch.ContentTypeDocument
	case "IMAGE":
		return dispatch.ContentTypeImage
	default:
		return dispatch.ContentTypeText
	}
}

func marshalParams(params []string) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(data)
}
