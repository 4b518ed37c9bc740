// Package printfmt renders a document to PDF through the print-format service.
package printfmt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/httpx"
)

// DefaultFormat is used when neither the rule nor the doctype pins one.
const DefaultFormat = "Standard"

// Client calls the print-format renderer.
type Client struct {
	baseURL    string
	httpClient *httpx.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpx.NewClient(timeout),
	}
}

// RenderPDF renders one document with the given print format and returns the
// PDF bytes plus a filename. Host-unreachable failures are remapped to a
// configuration hint; every other error propagates unmodified.
func (c *Client) RenderPDF(ctx context.Context, doctype, name, format string) ([]byte, string, error) {
	if format == "" {
		format = DefaultFormat
	}

	payload, err := json.Marshal(map[string]string{
		"doctype": doctype,
		"name":    name,
		"format":  format,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	url := fmt.Sprintf("%s/render", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isHostUnreachable(err) {
			return nil, "", stderrors.NewPDFGenerationError(err, true)
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read render response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("print service returned status %d: %s", resp.StatusCode, string(body))
	}

	filename := filenameFromHeader(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = fmt.Sprintf("%s.pdf", name)
	}

	return body, filename, nil
}

func isHostUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such host") || strings.Contains(msg, "network error")
}

func filenameFromHeader(disposition string) string {
	const marker = `filename="`
	idx := strings.Index(disposition, marker)
	if idx == -1 {
		return ""
	}
	rest := disposition[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end == -1 {
		return ""
	}
	return rest[:end]
}
