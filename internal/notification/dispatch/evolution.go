package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/httpx"
	"whatsapp-dispatch/internal/common/logger"
)

// EvolutionRequest is one outbound message for the gateway backend.
type EvolutionRequest struct {
	Number     string
	Text       string
	Attachment *Attachment
}

// EvolutionClient talks to an Evolution API gateway.
type EvolutionClient struct {
	httpClient *httpx.Client
	logger     logger.Logger
}

func NewEvolutionClient(timeout time.Duration, log logger.Logger) *EvolutionClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EvolutionClient{
		httpClient: httpx.NewClient(timeout),
		logger:     log.WithFields(map[string]interface{}{"backend": BackendEvolution}),
	}
}

// Send posts the message to the gateway, choosing the text or media endpoint
// by attachment state. A transport failure returns a connection error; a
// provider rejection returns a failed Result with the extracted message.
func (c *EvolutionClient) Send(ctx context.Context, settings EvolutionSettings, req EvolutionRequest) (*Result, error) {
	var (
		url         string
		payload     map[string]interface{}
		contentType string
	)

	switch {
	case req.Attachment != nil && req.Attachment.IsPDF():
		url = fmt.Sprintf("%s/message/sendMedia/%s", settings.BaseURL, settings.InstanceName)
		payload = map[string]interface{}{
			"number":    req.Number,
			"mediatype": "document",
			"mimetype":  "application/pdf",
			"caption":   req.Text,
			"media":     req.Attachment.Media,
			"fileName":  req.Attachment.FileName,
		}
		contentType = ContentTypeDocument
	case req.Attachment != nil:
		url = fmt.Sprintf("%s/message/sendMedia/%s", settings.BaseURL, settings.InstanceName)
		payload = map[string]interface{}{
			"number":    req.Number,
			"mediatype": "image",
			"caption":   req.Text,
			"media":     req.Attachment.Media,
		}
		contentType = ContentTypeImage
	default:
		text := req.Text
		if text == "" {
			text = "No Text"
		}
		url = fmt.Sprintf("%s/message/sendText/%s", settings.BaseURL, settings.InstanceName)
		payload = map[string]interface{}{
			"number": req.Number,
			"text":   text,
		}
		contentType = ContentTypeText
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", settings.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, stderrors.NewConnectionError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stderrors.NewConnectionError(err)
	}

	var responseData map[string]interface{}
	if err := json.Unmarshal(respBody, &responseData); err != nil {
		responseData = map[string]interface{}{"raw": string(respBody)}
	}

	result := &Result{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Response:    responseData,
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		result.Success = true
		result.MessageID = extractEvolutionMessageID(responseData)
		return result, nil
	}

	result.ErrorMessage = extractEvolutionError(responseData)
	c.logger.Warn("gateway rejected message", map[string]interface{}{
		"status": resp.StatusCode,
		"error":  result.ErrorMessage,
	})
	return result, nil
}

// Message ID lives at key.id, with message.key.id as the fallback path.
func extractEvolutionMessageID(data map[string]interface{}) string {
	if id := nestedString(data, "key", "id"); id != "" {
		return id
	}
	return nestedString(data, "message", "key", "id")
}

func extractEvolutionError(data map[string]interface{}) string {
	if msg := nestedString(data, "response", "message"); msg != "" {
		return msg
	}
	return "Unknown Error"
}

func nestedString(data map[string]interface{}, path ...string) string {
	current := data
	for i, key := range path {
		val, ok := current[key]
		if !ok {
			return ""
		}
		if i == len(path)-1 {
			if s, ok := val.(string); ok {
				return s
			}
			return ""
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next
	}
	return ""
}
