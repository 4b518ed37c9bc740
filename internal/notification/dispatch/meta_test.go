package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestMetaClient_SendTemplate_Success(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []interface{}{map[string]interface{}{"id": "wamid.META-1"}},
		})
	}))
	defer srv.Close()

	settings := MetaSettings{URL: srv.URL, Version: "v19.0", PhoneID: "12345", Token: "test-token"}
	client := NewMetaClient(5*time.Second, logger.NewNoOpLogger())

	result, err := client.SendTemplate(context.Background(), settings, MetaTemplateRequest{
		To:           "966501234567",
		TemplateName: "order_due",
		LanguageCode: "en",
		Parameters:   []string{"Acme Trading", "SO-0001"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "wamid.META-1", result.MessageID)
	assert.Equal(t, ContentTypeText, result.ContentType)

	assert.Equal(t, "whatsapp", payload["messaging_product"])
	assert.Equal(t, "966501234567", payload["to"])
	assert.Equal(t, "template", payload["type"])

	tmpl := payload["template"].(map[string]interface{})
	assert.Equal(t, "order_due", tmpl["name"])
	assert.Equal(t, "en", tmpl["language"].(map[string]interface{})["code"])

	components := tmpl["components"].([]interface{})
	assert.Len(t, components, 1)
	body := components[0].(map[string]interface{})
	assert.Equal(t, "body", body["type"])
	parameters := body["parameters"].([]interface{})
	assert.Len(t, parameters, 2)
	assert.Equal(t, "Acme Trading", parameters[0].(map[string]interface{})["text"])
}

func TestMetaClient_SendTemplate_NoParameters(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []interface{}{map[string]interface{}{"id": "wamid.META-2"}},
		})
	}))
	defer srv.Close()

	settings := MetaSettings{URL: srv.URL, Version: "v19.0", PhoneID: "12345", Token: "t"}
	client := NewMetaClient(5*time.Second, logger.NewNoOpLogger())

	result, err := client.SendTemplate(context.Background(), settings, MetaTemplateRequest{
		To:           "966501234567",
		TemplateName: "welcome",
		LanguageCode: "ar",
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)

	components := payload["template"].(map[string]interface{})["components"].([]interface{})
	assert.Empty(t, components)
}

func TestMetaClient_SendTemplate_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "(#132000) template not found"},
		})
	}))
	defer srv.Close()

	settings := MetaSettings{URL: srv.URL, Version: "v19.0", PhoneID: "12345", Token: "t"}
	client := NewMetaClient(5*time.Second, logger.NewNoOpLogger())

	result, err := client.SendTemplate(context.Background(), settings, MetaTemplateRequest{
		To:           "966501234567",
		TemplateName: "missing",
		LanguageCode: "en",
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "(#132000) template not found", result.ErrorMessage)
}

func TestMetaClient_SendTemplate_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"messages": []interface{}{}})
	}))
	defer srv.Close()

	settings := MetaSettings{URL: srv.URL, Version: "v19.0", PhoneID: "12345", Token: "t"}
	client := NewMetaClient(5*time.Second, logger.NewNoOpLogger())

	result, err := client.SendTemplate(context.Background(), settings, MetaTemplateRequest{
		To:           "966501234567",
		TemplateName: "welcome",
		LanguageCode: "en",
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "missing messages[0].id")
}

func TestMetaClient_SendTemplate_ConnectionError(t *testing.T) {
	settings := MetaSettings{URL: "http://127.0.0.1:1", Version: "v19.0", PhoneID: "12345", Token: "t"}
	client := NewMetaClient(500*time.Millisecond, logger.NewNoOpLogger())

	result, err := client.SendTemplate(context.Background(), settings, MetaTemplateRequest{
		To:           "966501234567",
		TemplateName: "welcome",
		LanguageCode: "en",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, stderrors.ErrCodeConnectionFailed, stderrors.CodeOf(err))
}
