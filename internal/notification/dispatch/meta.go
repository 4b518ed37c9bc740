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

// MetaTemplateRequest is one provider-native template send.
type MetaTemplateRequest struct {
	To           string
	TemplateName string
	LanguageCode string
	Parameters   []string
	ContentType  string
}

// MetaClient talks to the Meta graph-style messages API.
type MetaClient struct {
	httpClient *httpx.Client
	logger     logger.Logger
}

func NewMetaClient(timeout time.Duration, log logger.Logger) *MetaClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &MetaClient{
		httpClient: httpx.NewClient(timeout),
		logger:     log.WithFields(map[string]interface{}{"backend": BackendMeta}),
	}
}

// SendTemplate posts a template payload to {base}/{version}/{phone_id}/messages
// with bearer-token auth. The provider message ID comes from messages[0].id.
func (c *MetaClient) SendTemplate(ctx context.Context, settings MetaSettings, req MetaTemplateRequest) (*Result, error) {
	components := []map[string]interface{}{}
	if len(req.Parameters) > 0 {
		parameters := make([]map[string]interface{}, 0, len(req.Parameters))
		for _, p := range req.Parameters {
			parameters = append(parameters, map[string]interface{}{
				"type": "text",
				"text": p,
			})
		}
		components = append(components, map[string]interface{}{
			"type":       "body",
			"parameters": parameters,
		})
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "template",
		"template": map[string]interface{}{
			"name": req.TemplateName,
			"language": map[string]interface{}{
				"code": req.LanguageCode,
			},
			"components": components,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", settings.URL, settings.Version, settings.PhoneID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+settings.Token)

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

	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}

	result := &Result{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Response:    responseData,
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		result.MessageID = extractMetaMessageID(responseData)
		if result.MessageID != "" {
			result.Success = true
			return result, nil
		}
		result.ErrorMessage = "malformed success response: missing messages[0].id"
		return result, nil
	}

	result.ErrorMessage = extractMetaError(responseData)
	c.logger.Warn("provider rejected message", map[string]interface{}{
		"status": resp.StatusCode,
		"error":  result.ErrorMessage,
	})
	return result, nil
}

func extractMetaMessageID(data map[string]interface{}) string {
	messages, ok := data["messages"].([]interface{})
	if !ok || len(messages) == 0 {
		return ""
	}
	first, ok := messages[0].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := first["id"].(string)
	return id
}

func extractMetaError(data map[string]interface{}) string {
	errObj, ok := data["error"].(map[string]interface{})
	if !ok {
		return "Unknown Error"
	}
	if msg, ok := errObj["Error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := errObj["message"].(string); ok && msg != "" {
		return msg
	}
	return "Unknown Error"
}
