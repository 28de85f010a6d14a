package util

import (
	"errors"
	"strings"
)

// ErrInvalidSegment is returned for names that cannot be used inside an object key.
var ErrInvalidSegment = errors.New("invalid key segment")

// SanitizeKeySegment makes name safe to embed as one segment of an object key.
// Path separators become underscores and traversal patterns are rejected.
func SanitizeKeySegment(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidSegment
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || s == "." {
		return "", ErrInvalidSegment
	}
	return s, nil
}
