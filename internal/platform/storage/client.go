package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultProofURLExpiry = 5 * time.Minute
	maxProofURLExpiry     = 15 * time.Minute
)

var (
	errNoSigner         = errors.New("storage: signer is required")
	errInvalidBucket    = errors.New("storage: bucket name is required")
	errInvalidObject    = errors.New("storage: object name is required")
	errMethodNotAllowed = errors.New("storage: HTTP method not allowed")
	errExpiryTooLong    = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates V4 signed download URLs for payment-proof objects.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client backed by the provided signer.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// DownloadOptions control signed URL validation and response behaviour.
type DownloadOptions struct {
	Method       string
	ExpiresIn    time.Duration
	Disposition  string
	CacheControl string
	ResponseType string
	Query        map[string]string
}

// SignedURLResult describes the generated signed URL details.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

const (
	httpMethodGet  = "GET"
	httpMethodHead = "HEAD"
)

// DownloadURL creates a time-limited signed URL for reading the given object.
func (c *Client) DownloadURL(ctx context.Context, bucket, object string, opts DownloadOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if ctx == nil {
		return SignedURLResult{}, errors.New("storage: context is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}

	googleAccessID := c.signer.Email()
	if googleAccessID == "" {
		return SignedURLResult{}, errNoSigner
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = httpMethodGet
	}
	if method != httpMethodGet && method != httpMethodHead {
		return SignedURLResult{}, errMethodNotAllowed
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultProofURLExpiry
	}
	if expiry > maxProofURLExpiry {
		return SignedURLResult{}, errExpiryTooLong
	}

	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: googleAccessID,
		Scheme:         c.scheme,
		Method:         method,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	queryValues := map[string]string{}
	if opts.Disposition != "" {
		queryValues["response-content-disposition"] = opts.Disposition
	}
	if opts.CacheControl != "" {
		queryValues["response-cache-control"] = opts.CacheControl
	}
	if opts.ResponseType != "" {
		queryValues["response-content-type"] = opts.ResponseType
	}
	for key, value := range opts.Query {
		if _, exists := queryValues[key]; exists {
			continue
		}
		queryValues[key] = value
	}
	if len(queryValues) > 0 {
		urlOpts.QueryParameters = mapToURLValues(queryValues)
	}

	expiryTime := c.now().Add(expiry)
	urlOpts.Expires = expiryTime

	signedURL, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign download url: %w", err)
	}

	return SignedURLResult{
		URL:       signedURL,
		Method:    method,
		ExpiresAt: expiryTime,
	}, nil
}

func mapToURLValues(values map[string]string) url.Values {
	out := make(url.Values, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Add(key, values[key])
	}
	return out
}
