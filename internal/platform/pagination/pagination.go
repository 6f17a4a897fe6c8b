// Package pagination provides the shared page size handling and cursor token
// codec used by list endpoints and their Firestore repositories.
package pagination

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page size")
	ErrInvalidPageToken = errors.New("pagination: invalid page token")
)

// ParsePageSize interprets the raw page_size query value. An empty value
// yields the fallback, non-positive values yield the fallback, and values
// above max are clamped to max.
func ParsePageSize(raw string, fallback, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	return Clamp(size, fallback, max), nil
}

// Clamp normalises an already-parsed page size against the fallback and cap.
func Clamp(size, fallback, max int) int {
	switch {
	case size <= 0:
		return fallback
	case size > max:
		return max
	default:
		return size
	}
}
