// Package errors provides standardized error handling for the notification
// dispatch pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors abort a send before any network call.
	ErrCodeGatewayNotConfigured ErrorCode = "GATEWAY_NOT_CONFIGURED"
	ErrCodeTemplateNotFound     ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeFieldNotFound        ErrorCode = "FIELD_NOT_FOUND"
	ErrCodePhoneNumberMissing   ErrorCode = "PHONE_NUMBER_MISSING"
	ErrCodeRuleInvalid          ErrorCode = "RULE_INVALID"

	// Send-path errors are captured and logged, never propagated past the pipeline.
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeProviderRejected  ErrorCode = "PROVIDER_REJECTED"
	ErrCodePDFGeneration     ErrorCode = "PDF_GENERATION_FAILED"
	ErrCodeConditionFailed   ErrorCode = "CONDITION_EVAL_FAILED"
	ErrCodeAttachmentInvalid ErrorCode = "ATTACHMENT_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewGatewayNotConfiguredError flags missing or incomplete gateway settings.
func NewGatewayNotConfiguredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayNotConfigured,
		Message:   "Gateway settings not configured",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(template string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found",
		Details:   fmt.Sprintf("template: %s", template),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFieldNotFoundError flags a configured field missing from the target type.
func NewFieldNotFoundError(field, doctype string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFieldNotFound,
		Message:   fmt.Sprintf("Field name %s does not exist", field),
		Details:   fmt.Sprintf("doctype: %s", doctype),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPhoneNumberMissingError flags a document with no usable recipient number.
func NewPhoneNumberMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePhoneNumberMissing,
		Message:   "Phone number not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleInvalidError flags an incoherent notification rule configuration.
func NewRuleInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleInvalid,
		Message:   "Notification rule configuration is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionError wraps a transport failure in the provider call.
func NewConnectionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionFailed,
		Message:   fmt.Sprintf("Connection error: %s", err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderRejectedError captures a non-2xx provider response.
func NewProviderRejectedError(status int, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRejected,
		Message:   message,
		Details:   fmt.Sprintf("status: %d", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPDFGenerationError wraps a print-renderer failure. Network-unreachable
// failures carry an actionable configuration hint instead of the raw error.
func NewPDFGenerationError(err error, hostUnreachable bool) *StandardError {
	message := "PDF generation failed"
	details := err.Error()
	if hostUnreachable {
		message = "PDF generation failed due to network error. Please ensure the print service URL " +
			"is properly configured and publicly reachable instead of localhost."
	}
	return &StandardError{
		Code:      ErrCodePDFGeneration,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConditionError wraps a condition-expression evaluation failure.
func NewConditionError(expr string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConditionFailed,
		Message:   "Condition evaluation failed",
		Details:   fmt.Sprintf("condition: %s, error: %s", expr, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAttachmentInvalidError flags an attachment configuration that cannot be resolved.
func NewAttachmentInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAttachmentInvalid,
		Message:   "Attachment configuration is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, or empty if it is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsConfigurationError reports whether err aborts a send before any network call.
func IsConfigurationError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeGatewayNotConfigured, ErrCodeTemplateNotFound, ErrCodeFieldNotFound,
		ErrCodePhoneNumberMissing, ErrCodeRuleInvalid:
		return true
	}
	return false
}
