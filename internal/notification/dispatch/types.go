// Package dispatch holds the outbound provider clients: the Meta graph-style
// template API and the self-hosted Evolution API gateway. Exactly one backend
// serves a given notification rule.
package dispatch

import "strings"

// Backend selection values carried on a notification rule.
const (
	BackendMeta      = "meta"
	BackendEvolution = "evolution"
)

// Content types recorded on sent messages.
const (
	ContentTypeText     = "text"
	ContentTypeDocument = "document"
	ContentTypeImage    = "image"
)

// EvolutionSettings is the connection configuration for an Evolution gateway
// instance, read from a named settings record at send time.
type EvolutionSettings struct {
	Name         string
	BaseURL      string
	InstanceName string
	APIKey       string
}

func (s EvolutionSettings) Configured() bool {
	return s.BaseURL != "" && s.InstanceName != "" && s.APIKey != ""
}

// MetaSettings is the connection configuration for the Meta Cloud API.
type MetaSettings struct {
	URL     string
	Version string
	PhoneID string
	Token   string
}

func (s MetaSettings) Configured() bool {
	return s.URL != "" && s.Version != "" && s.PhoneID != ""
}

// Attachment is a resolved media payload: either a base64-encoded body or a
// fetchable URL, plus the filename when one is known.
type Attachment struct {
	Media    string
	FileName string
}

// IsPDF reports whether the attachment should be sent as a document.
func (a *Attachment) IsPDF() bool {
	return a != nil && strings.HasSuffix(strings.ToLower(a.FileName), ".pdf")
}

// Result is the outcome of one provider call.
type Result struct {
	Success      bool
	StatusCode   int
	MessageID    string
	ContentType  string
	Response     map[string]interface{}
	ErrorMessage string
}
