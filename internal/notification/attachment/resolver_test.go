package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification/document"

	"github.com/stretchr/testify/assert"
)

type mockPrintClient struct {
	content    []byte
	filename   string
	err        error
	gotDoctype string
	gotName    string
	gotFormat  string
}

func (m *mockPrintClient) RenderPDF(_ context.Context, doctype, name, format string) ([]byte, string, error) {
	m.gotDoctype, m.gotName, m.gotFormat = doctype, name, format
	if m.err != nil {
		return nil, "", m.err
	}
	return m.content, m.filename, nil
}

type mockFormatSource struct {
	format string
}

func (m *mockFormatSource) DefaultPrintFormat(_ context.Context, _ string) (string, error) {
	return m.format, nil
}

func testDoc() *document.Document {
	return &document.Document{
		Doctype: "sales_order",
		Name:    "SO-0001",
		Fields: map[string]interface{}{
			"contract_file": "/files/contract.pdf",
			"external_file": "https://cdn.example.com/contract.pdf",
		},
	}
}

func newTestResolver(print PrintClient, formats FormatSource) *Resolver {
	return NewResolver(print, formats, NewShareKeys("secret", time.Hour), "https://app.example.com")
}

func TestResolver_Resolve_None(t *testing.T) {
	resolver := newTestResolver(nil, nil)

	att, err := resolver.Resolve(context.Background(), &models.Rule{}, testDoc())
	assert.NoError(t, err)
	assert.Nil(t, att)
}

func TestResolver_Resolve_DocumentPrint(t *testing.T) {
	print := &mockPrintClient{content: []byte("%PDF-1.4"), filename: "SO-0001.pdf"}
	resolver := newTestResolver(print, &mockFormatSource{})

	rule := &models.Rule{AttachDocumentPrint: true, PrintFormat: "Invoice"}
	att, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.NoError(t, err)
	assert.Equal(t, "SO-0001.pdf", att.FileName)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), att.Media)
	assert.Equal(t, "Invoice", print.gotFormat)
	assert.True(t, att.IsPDF())
}

func TestResolver_Resolve_DocumentPrint_DoctypeDefaultFormat(t *testing.T) {
	print := &mockPrintClient{content: []byte("%PDF"), filename: "SO-0001.pdf"}
	resolver := newTestResolver(print, &mockFormatSource{format: "Branded"})

	rule := &models.Rule{AttachDocumentPrint: true}
	_, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.NoError(t, err)
	assert.Equal(t, "Branded", print.gotFormat)
}

func TestResolver_Resolve_DocumentPrint_ErrorPropagates(t *testing.T) {
	renderErr := errors.New("renderer exploded")
	resolver := newTestResolver(&mockPrintClient{err: renderErr}, &mockFormatSource{})

	rule := &models.Rule{AttachDocumentPrint: true}
	att, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.Nil(t, att)
	assert.ErrorIs(t, err, renderErr)
}

func TestResolver_Resolve_CustomFromField_RelativeGetsShareKey(t *testing.T) {
	resolver := newTestResolver(nil, nil)

	rule := &models.Rule{
		CustomAttachment: true,
		AttachFromField:  "contract_file",
		FileName:         "contract.pdf",
	}
	att, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.NoError(t, err)
	assert.Equal(t, "contract.pdf", att.FileName)
	assert.True(t, strings.HasPrefix(att.Media, "https://app.example.com/files/contract.pdf?key="))

	key := strings.TrimPrefix(att.Media, "https://app.example.com/files/contract.pdf?key=")
	assert.True(t, resolver.shareKeys.Verify("/files/contract.pdf", key))
}

func TestResolver_Resolve_CustomFromField_AbsolutePassesThrough(t *testing.T) {
	resolver := newTestResolver(nil, nil)

	rule := &models.Rule{
		CustomAttachment: true,
		AttachFromField:  "external_file",
		FileName:         "contract.pdf",
	}
	att, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/contract.pdf", att.Media)
}

func TestResolver_Resolve_CustomStatic(t *testing.T) {
	resolver := newTestResolver(nil, nil)

	rule := &models.Rule{
		CustomAttachment: true,
		Attach:           "/files/price-list.png",
		FileName:         "price-list.png",
	}
	att, err := resolver.Resolve(context.Background(), rule, testDoc())

	assert.NoError(t, err)
	// Statically attached files are absolutized without a share key.
	assert.Equal(t, "https://app.example.com/files/price-list.png", att.Media)
	assert.False(t, att.IsPDF())
}

func TestResolver_Resolve_CustomInvalidConfig(t *testing.T) {
	resolver := newTestResolver(nil, nil)

	rule := &models.Rule{CustomAttachment: true, AttachFromField: "missing_field"}
	_, err := resolver.Resolve(context.Background(), rule, testDoc())
	assert.Equal(t, stderrors.ErrCodeAttachmentInvalid, stderrors.CodeOf(err))

	rule = &models.Rule{CustomAttachment: true}
	_, err = resolver.Resolve(context.Background(), rule, testDoc())
	assert.Equal(t, stderrors.ErrCodeAttachmentInvalid, stderrors.CodeOf(err))
}

func TestShareKeys_VerifyRejectsTamperAndExpiry(t *testing.T) {
	keys := NewShareKeys("secret", time.Hour)

	key := keys.Generate("/files/a.pdf")
	assert.True(t, keys.Verify("/files/a.pdf", key))
	assert.False(t, keys.Verify("/files/b.pdf", key))
	assert.False(t, keys.Verify("/files/a.pdf", key+"x"))
	assert.False(t, keys.Verify("/files/a.pdf", "garbage"))

	expired := NewShareKeys("secret", -time.Hour)
	assert.False(t, expired.Verify("/files/a.pdf", expired.Generate("/files/a.pdf")))
}
