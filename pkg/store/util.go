package store

import "strings"

// Normalize produces the store-level normalized form of an entity name:
// lowercased and trimmed. Both backends bind this value instead of
// normalizing in SQL so the two stay byte-identical.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
