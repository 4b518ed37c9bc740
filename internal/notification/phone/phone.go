// Package phone normalizes recipient numbers for the WhatsApp providers.
package phone

import "strings"

// Format strips a single leading "+" from a phone number. Anything else is
// passed through unchanged; a malformed number is the provider's to reject.
func Format(number string) string {
	return strings.TrimPrefix(number, "+")
}
