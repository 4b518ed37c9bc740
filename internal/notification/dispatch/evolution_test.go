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

func evolutionServer(t *testing.T, wantPath string, status int, response map[string]interface{}, gotPayload *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("apikey"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if gotPayload != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(gotPayload))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func evolutionSettings(baseURL string) EvolutionSettings {
	return EvolutionSettings{
		Name:         "primary",
		BaseURL:      baseURL,
		InstanceName: "shop",
		APIKey:       "test-api-key",
	}
}

func TestEvolutionClient_Send_Text(t *testing.T) {
	var payload map[string]interface{}
	srv := evolutionServer(t, "/message/sendText/shop", http.StatusCreated, map[string]interface{}{
		"key": map[string]interface{}{"id": "EVO-MSG-1"},
	}, &payload)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number: "966501234567",
		Text:   "Your order is due",
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "EVO-MSG-1", result.MessageID)
	assert.Equal(t, ContentTypeText, result.ContentType)
	assert.Equal(t, "966501234567", payload["number"])
	assert.Equal(t, "Your order is due", payload["text"])
}

func TestEvolutionClient_Send_PDFDocument(t *testing.T) {
	var payload map[string]interface{}
	srv := evolutionServer(t, "/message/sendMedia/shop", http.StatusOK, map[string]interface{}{
		"message": map[string]interface{}{"key": map[string]interface{}{"id": "EVO-MSG-2"}},
	}, &payload)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number: "966501234567",
		Text:   "Invoice attached",
		Attachment: &Attachment{
			Media:    "JVBERi0xLjQ=",
			FileName: "invoice.PDF",
		},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	// fallback path message.key.id
	assert.Equal(t, "EVO-MSG-2", result.MessageID)
	assert.Equal(t, ContentTypeDocument, result.ContentType)
	assert.Equal(t, "document", payload["mediatype"])
	assert.Equal(t, "application/pdf", payload["mimetype"])
	assert.Equal(t, "Invoice attached", payload["caption"])
	assert.Equal(t, "invoice.PDF", payload["fileName"])
}

func TestEvolutionClient_Send_Image(t *testing.T) {
	var payload map[string]interface{}
	srv := evolutionServer(t, "/message/sendMedia/shop", http.StatusOK, map[string]interface{}{
		"key": map[string]interface{}{"id": "EVO-MSG-3"},
	}, &payload)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number:     "966501234567",
		Text:       "Receipt",
		Attachment: &Attachment{Media: "https://files.example.com/receipt.png", FileName: "receipt.png"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ContentTypeImage, result.ContentType)
	assert.Equal(t, "image", payload["mediatype"])
	assert.Nil(t, payload["mimetype"])
	assert.Nil(t, payload["fileName"])
}

func TestEvolutionClient_Send_EmptyTextDefaults(t *testing.T) {
	var payload map[string]interface{}
	srv := evolutionServer(t, "/message/sendText/shop", http.StatusOK, map[string]interface{}{
		"key": map[string]interface{}{"id": "EVO-MSG-4"},
	}, &payload)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	_, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number: "966501234567",
	})

	assert.NoError(t, err)
	assert.Equal(t, "No Text", payload["text"])
}

func TestEvolutionClient_Send_ProviderRejection(t *testing.T) {
	srv := evolutionServer(t, "/message/sendText/shop", http.StatusInternalServerError, map[string]interface{}{
		"response": map[string]interface{}{"message": "instance not connected"},
	}, nil)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number: "966501234567",
		Text:   "hello",
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "instance not connected", result.ErrorMessage)
	assert.Empty(t, result.MessageID)
}

func TestEvolutionClient_Send_RejectionWithoutDetail(t *testing.T) {
	srv := evolutionServer(t, "/message/sendText/shop", http.StatusBadRequest, map[string]interface{}{}, nil)
	defer srv.Close()

	client := NewEvolutionClient(5*time.Second, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings(srv.URL), EvolutionRequest{
		Number: "966501234567",
		Text:   "hello",
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Unknown Error", result.ErrorMessage)
}

func TestEvolutionClient_Send_ConnectionError(t *testing.T) {
	client := NewEvolutionClient(500*time.Millisecond, logger.NewNoOpLogger())
	result, err := client.Send(context.Background(), evolutionSettings("http://127.0.0.1:1"), EvolutionRequest{
		Number: "966501234567",
		Text:   "hello",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, stderrors.ErrCodeConnectionFailed, stderrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Connection error")
}

func TestExtractEvolutionMessageID_PrefersTopLevelKey(t *testing.T) {
	data := map[string]interface{}{
		"key":     map[string]interface{}{"id": "primary"},
		"message": map[string]interface{}{"key": map[string]interface{}{"id": "fallback"}},
	}
	assert.Equal(t, "primary", extractEvolutionMessageID(data))

	delete(data, "key")
	assert.Equal(t, "fallback", extractEvolutionMessageID(data))

	assert.Equal(t, "", extractEvolutionMessageID(map[string]interface{}{}))
}
