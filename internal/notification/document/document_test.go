package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocument_GetFormatted(t *testing.T) {
	doc := &Document{
		Doctype: "sales_order",
		Name:    "SO-0001",
		Fields: map[string]interface{}{
			"customer":   "Acme Trading",
			"due_date":   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			"created_at": time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC),
			"total":      1250.5,
			"qty":        int64(3),
			"notified":   false,
			"remark":     nil,
		},
	}

	tests := []struct {
		field    string
		expected string
	}{
		{"customer", "Acme Trading"},
		{"due_date", "2025-03-14"},
		{"created_at", "2025-03-14 09:30:15"},
		{"total", "1250.5"},
		{"qty", "3"},
		{"notified", "0"},
		{"remark", ""},
		{"missing_field", ""},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, doc.GetFormatted(tt.field))
		})
	}
}

func TestDocument_GetString(t *testing.T) {
	doc := &Document{Fields: map[string]interface{}{"phone": "+111", "code": 42}}

	assert.Equal(t, "+111", doc.GetString("phone"))
	assert.Equal(t, "42", doc.GetString("code"))
	assert.Equal(t, "", doc.GetString("absent"))
}

func TestDocument_Get_NilFields(t *testing.T) {
	doc := &Document{}
	assert.Nil(t, doc.Get("anything"))
}
