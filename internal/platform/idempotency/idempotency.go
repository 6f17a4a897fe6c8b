// Package idempotency makes order creation safe to retry. The first request
// under an Idempotency-Key claims the key and records its response; later
// requests with the same key and payload replay that response instead of
// creating a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a completed claim can be replayed.
const DefaultTTL = 24 * time.Hour

// ErrKeyReused reports an idempotency key presented with a payload that does
// not match the one it was first claimed for.
var ErrKeyReused = errors.New("idempotency: key reused with a different request")

// Decision tells the middleware how to proceed after claiming a key.
type Decision int

const (
	// DecisionProceed means the key is newly claimed and the handler runs.
	DecisionProceed Decision = iota
	// DecisionReplay means a finished response exists and is served as-is.
	DecisionReplay
	// DecisionInFlight means an earlier request holds the claim and has not
	// finished yet.
	DecisionInFlight
)

// StoredResponse is the portion of an HTTP response retained for replay.
type StoredResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Outcome is the result of Begin. Stored is populated only for replays.
type Outcome struct {
	Decision Decision
	Stored   StoredResponse
}

// Store persists idempotency claims across requests.
type Store interface {
	// Begin claims the key for the given fingerprint. An expired claim is
	// treated as absent. Begin returns ErrKeyReused when the key exists
	// under a different fingerprint.
	Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, error)
	// Complete stores the response so later requests can replay it.
	Complete(ctx context.Context, key string, resp StoredResponse, now time.Time, ttl time.Duration) error
	// Abandon drops the claim so the caller may retry after a failure.
	Abandon(ctx context.Context, key string) error
	// Purge removes up to limit expired claims and reports how many went.
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

// claimID derives the document key from the caller identity and the raw
// header value, so two customers reusing the same key never collide.
func claimID(identity, key string) string {
	return digest([]byte(identity + "\n" + strings.TrimSpace(key)))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hop-by-hop and per-response headers that must not be replayed verbatim.
var volatileHeaders = map[string]struct{}{
	"Connection":          {},
	"Content-Length":      {},
	"Date":                {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func storableHeader(src http.Header) http.Header {
	if len(src) == 0 {
		return nil
	}
	dst := make(http.Header, len(src))
	for name, values := range src {
		canonical := http.CanonicalHeaderKey(name)
		if _, volatile := volatileHeaders[canonical]; volatile {
			continue
		}
		dst[canonical] = append([]string(nil), values...)
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}
