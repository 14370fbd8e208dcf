package utils

import (
	"net/mail"
	"strings"
)

// NormalizeAddress reduces a From-style header value to a bare, lower-cased
// email address. Display names and angle brackets are stripped; the local part
// is kept as-is. Returns "" when no address can be extracted.
func NormalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if addr, err := mail.ParseAddress(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(addr.Address))
	}

	// Fallback for headers net/mail rejects, e.g. unquoted display names
	// containing commas. Take whatever sits between the last angle brackets.
	if i := strings.LastIndexByte(raw, '<'); i >= 0 {
		rest := raw[i+1:]
		if j := strings.IndexByte(rest, '>'); j > 0 {
			return strings.ToLower(strings.TrimSpace(rest[:j]))
		}
	}

	if strings.Contains(raw, "@") {
		return strings.ToLower(raw)
	}

	return ""
}
