package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenUUID generates a random UUID string.
func GenUUID() string {
	return uuid.New().String()
}

// HasPrefixes returns true if src has any of the given prefixes.
func HasPrefixes(src string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(src, prefix) {
			return true
		}
	}
	return false
}
