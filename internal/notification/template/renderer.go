// Package template substitutes positional placeholders in message bodies.
package template

import (
	"fmt"
	"strings"

	"whatsapp-dispatch/internal/notification/document"
)

// Render replaces {{1}}, {{2}}, ... in body with the parameters in order.
// Placeholders beyond the supplied parameters are left as-is.
func Render(body string, params []string) string {
	result := body
	for i, param := range params {
		placeholder := fmt.Sprintf("{{%d}}", i+1)
		result = strings.ReplaceAll(result, placeholder, param)
	}
	return result
}

// Params reads the formatted value of each mapped field from the document, in
// declared order.
func Params(doc *document.Document, fields []string) []string {
	params := make([]string, 0, len(fields))
	for _, field := range fields {
		params = append(params, doc.GetFormatted(field))
	}
	return params
}
