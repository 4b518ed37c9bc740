package models

import "time"

// Notification rule trigger modes.
const (
	TypeDocTypeEvent = "DocType Event"
	TypeScheduled    = "Scheduled"
)

// Scheduled-rule date directions.
const (
	EventDaysBefore = "Days Before"
	EventDaysAfter  = "Days After"
)

// Rule is an administrator-defined notification configuration.
type Rule struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Disabled         bool     `json:"disabled"`
	NotificationType string   `json:"notificationType"` // TypeDocTypeEvent or TypeScheduled
	ReferenceDoctype string   `json:"referenceDoctype"` // target table
	FieldName        string   `json:"fieldName"`        // column holding the recipient phone number
	DateField        string   `json:"dateField"`        // column driving scheduled triggers
	DaysInAdvance    int      `json:"daysInAdvance"`
	Event            string   `json:"event"`     // EventDaysBefore or EventDaysAfter
	Condition        string   `json:"condition"` // boolean expression over doc
	Template         string   `json:"template"`  // message template name
	Fields           []string `json:"fields"`    // ordered field-to-parameter mappings

	// Attachment configuration; document print and custom file are
	// mutually exclusive.
	AttachDocumentPrint bool   `json:"attachDocumentPrint"`
	PrintFormat         string `json:"printFormat"`
	CustomAttachment    bool   `json:"customAttachment"`
	Attach              string `json:"attach"`          // statically attached file URL
	AttachFromField     string `json:"attachFromField"` // column holding a file URL
	FileName            string `json:"fileName"`

	// Backend selection: "meta" or "evolution", with the Evolution
	// settings record named by Sender.
	Backend string `json:"backend"`
	Sender  string `json:"sender"`

	// Write-back applied to the triggering record after a successful send.
	SetPropertyAfterAlert string `json:"setPropertyAfterAlert"`
	PropertyValue         string `json:"propertyValue"`
}

// Scheduled reports whether the rule is driven by the daily tick.
func (r *Rule) Scheduled() bool {
	return r.Event == EventDaysBefore || r.Event == EventDaysAfter
}

// Template is a named message body with positional placeholders and the
// provider-native template identity.
type Template struct {
	Name         string `json:"name"`
	ActualName   string `json:"actualName"` // provider-side template name
	LanguageCode string `json:"languageCode"`
	HeaderType   string `json:"headerType"`
	Body         string `json:"body"`
}

// Message is the immutable record of one outbound send.
type Message struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"` // always "Outgoing"
	To                 string    `json:"to"`
	Message            string    `json:"message"`
	MessageType        string    `json:"messageType"`
	MessageID          string    `json:"messageId"` // provider message ID
	ContentType        string    `json:"contentType"`
	Template           string    `json:"template"`
	TemplateParameters string    `json:"templateParameters"` // JSON-serialized rendered parameters
	ReferenceDoctype   string    `json:"referenceDoctype"`
	ReferenceName      string    `json:"referenceName"`
	CreatedAt          time.Time `json:"createdAt"`
}

// LogEntry is the per-attempt audit artifact: exactly one per dispatch
// attempt, success or failure.
type LogEntry struct {
	ID          string                 `json:"id"`
	Template    string                 `json:"template"`
	Success     bool                   `json:"success"`
	Response    map[string]interface{} `json:"response,omitempty"`
	Error       string                 `json:"error,omitempty"`
	PhoneNumber string                 `json:"phoneNumber"`
	Message     string                 `json:"message"`
	CreatedAt   time.Time              `json:"createdAt"`
}
