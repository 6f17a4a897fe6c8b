package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/auric-atelier/api/internal/platform/auth"
	"github.com/auric-atelier/api/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
)

type guard struct {
	store  Store
	header string
	ttl    time.Duration
	clock  func() time.Time
}

// Option customises the middleware.
type Option func(*guard)

// WithHeader overrides the request header carrying the idempotency key.
func WithHeader(name string) Option {
	return func(g *guard) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			g.header = trimmed
		}
	}
}

// WithTTL overrides how long completed claims stay replayable.
func WithTTL(ttl time.Duration) Option {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware guards the route it wraps: the request must carry an
// idempotency key, and only the first request under that key reaches the
// handler. Responses are buffered so a completed claim always holds the
// full response it will replay.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	g := &guard{store: store, header: defaultHeaderName, ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	key := strings.TrimSpace(r.Header.Get(g.header))
	if key == "" {
		fail(w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
		return
	}

	body, err := bufferBody(r)
	if err != nil {
		fail(w, http.StatusInternalServerError, "idempotency_read_body_failed", "unable to read request body")
		return
	}

	ctx := r.Context()
	identity := requesterID(ctx)
	id := claimID(identity, key)
	now := g.clock().UTC()

	outcome, err := g.store.Begin(ctx, id, fingerprint(r, identity, body), now, g.ttl)
	if err != nil {
		if errors.Is(err, ErrKeyReused) {
			fail(w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
			return
		}
		requestctx.Logger(ctx).Error("idempotency claim failed", zap.Error(err))
		fail(w, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
		return
	}

	switch outcome.Decision {
	case DecisionReplay:
		replay(w, outcome.Stored)
		return
	case DecisionInFlight:
		fail(w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	}

	buffered := newBufferedResponse()
	next.ServeHTTP(buffered, r)

	stored := StoredResponse{
		Status: buffered.statusCode(),
		Header: storableHeader(buffered.header),
		Body:   buffered.bytes(),
	}
	if err := g.store.Complete(ctx, id, stored, g.clock().UTC(), g.ttl); err != nil {
		logger := requestctx.Logger(ctx)
		logger.Error("idempotency record failed", zap.Error(err))
		// The claim must not survive an unrecorded response, or retries
		// would be rejected as in-flight forever.
		if err := g.store.Abandon(ctx, id); err != nil {
			logger.Warn("idempotency claim not released", zap.Error(err))
		}
		fail(w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}

	buffered.flush(w)
}

// bufferBody drains the request body and replaces it with a replayable copy.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requesterID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return identity.UID
	}
	return "anonymous"
}

func fingerprint(r *http.Request, identity string, body []byte) string {
	parts := []string{identity, r.Method, r.URL.Path, digest(body)}
	return digest([]byte(strings.Join(parts, "\n")))
}

func replay(w http.ResponseWriter, stored StoredResponse) {
	for name, values := range stored.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")

	code := stored.Status
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	if len(stored.Body) > 0 {
		_, _ = w.Write(stored.Body)
	}
}

func fail(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
	})
}

// bufferedResponse holds the handler's response until the claim is recorded.
type bufferedResponse struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if code > 0 && b.code == 0 {
		b.code = code
	}
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	if b.code == 0 {
		b.code = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedResponse) statusCode() int {
	if b.code == 0 {
		return http.StatusOK
	}
	return b.code
}

func (b *bufferedResponse) bytes() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(b.statusCode())
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
