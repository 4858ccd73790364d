package util

import "strings"

// SanitizeText makes article-derived text safe for storage: invalid UTF-8
// sequences are dropped and NUL bytes removed (Postgres rejects \x00 in TEXT).
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
