package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeCursor marks the last document of a page for queries ordered by
// creation time descending with the document id as tie breaker.
type TimeCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// EncodeTimeCursor serialises the cursor into a base64 URL-safe page token.
// A cursor without a document id yields an empty token.
func EncodeTimeCursor(cursor TimeCursor) (string, error) {
	if cursor.ID == "" {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeTimeCursor parses a token produced by EncodeTimeCursor. An empty
// token yields a zero cursor.
func DecodeTimeCursor(raw string) (TimeCursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TimeCursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return TimeCursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor TimeCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return TimeCursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.ID == "" {
		return TimeCursor{}, fmt.Errorf("%w: missing document id", ErrInvalidPageToken)
	}
	return cursor, nil
}
