// Package attachment decides what, if anything, rides along with a message:
// a freshly rendered document PDF, a stored or field-referenced file, or
// nothing.
package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification/dispatch"
	"whatsapp-dispatch/internal/notification/document"
)

// PrintClient renders a document to PDF.
type PrintClient interface {
	RenderPDF(ctx context.Context, doctype, name, format string) ([]byte, string, error)
}

// FormatSource resolves a doctype's default print format.
type FormatSource interface {
	DefaultPrintFormat(ctx context.Context, doctype string) (string, error)
}

// Resolver maps a rule's attachment configuration to a dispatchable payload.
type Resolver struct {
	print     PrintClient
	formats   FormatSource
	shareKeys *ShareKeys
	baseURL   string
}

func NewResolver(print PrintClient, formats FormatSource, shareKeys *ShareKeys, baseURL string) *Resolver {
	return &Resolver{
		print:     print,
		formats:   formats,
		shareKeys: shareKeys,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// Resolve returns the attachment for the rule and document, or nil when the
// rule sends plain text.
func (r *Resolver) Resolve(ctx context.Context, rule *models.Rule, doc *document.Document) (*dispatch.Attachment, error) {
	switch {
	case rule.AttachDocumentPrint:
		return r.resolvePrint(ctx, rule, doc)
	case rule.CustomAttachment:
		return r.resolveCustom(rule, doc)
	default:
		return nil, nil
	}
}

func (r *Resolver) resolvePrint(ctx context.Context, rule *models.Rule, doc *document.Document) (*dispatch.Attachment, error) {
	format := rule.PrintFormat
	if format == "" && r.formats != nil {
		defaultFormat, err := r.formats.DefaultPrintFormat(ctx, doc.Doctype)
		if err == nil && defaultFormat != "" {
			format = defaultFormat
		}
	}

	content, filename, err := r.print.RenderPDF(ctx, doc.Doctype, doc.Name, format)
	if err != nil {
		return nil, err
	}

	return &dispatch.Attachment{
		Media:    base64.StdEncoding.EncodeToString(content),
		FileName: filename,
	}, nil
}

func (r *Resolver) resolveCustom(rule *models.Rule, doc *document.Document) (*dispatch.Attachment, error) {
	filename := rule.FileName

	var fileURL string
	if rule.AttachFromField != "" {
		fileURL = doc.GetString(rule.AttachFromField)
		if fileURL == "" {
			return nil, stderrors.NewAttachmentInvalidError(
				fmt.Sprintf("field %s holds no file URL on %s %s", rule.AttachFromField, doc.Doctype, doc.Name))
		}
		if !strings.HasPrefix(fileURL, "http") {
			// Internal relative link: absolutize and authorize external access.
			absolute := r.baseURL + fileURL
			fileURL = appendQuery(absolute, "key", r.shareKeys.Generate(fileURL))
		}
	} else {
		fileURL = rule.Attach
		if fileURL == "" {
			return nil, stderrors.NewAttachmentInvalidError("rule has neither an attached file nor an attach-from field")
		}
		if !strings.HasPrefix(fileURL, "http") {
			fileURL = r.baseURL + fileURL
		}
	}

	return &dispatch.Attachment{
		Media:    fileURL,
		FileName: filename,
	}, nil
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + value
}
