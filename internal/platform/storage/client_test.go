package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/auric-atelier/api/internal/platform/auth"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestDownloadURLSuccess(t *testing.T) {
	signer := &fakeSigner{email: "signer@example.iam.gserviceaccount.com"}
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	client, err := NewClient(signer, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	res, err := client.DownloadURL(context.Background(), "auric-proofs", "orders/ord_123/proofs/receipt.png", DownloadOptions{
		ExpiresIn:   10 * time.Minute,
		Disposition: "inline",
	})
	if err != nil {
		t.Fatalf("DownloadURL returned error: %v", err)
	}

	if res.Method != httpMethodGet {
		t.Fatalf("expected method GET, got %s", res.Method)
	}
	if !res.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", res.ExpiresAt)
	}

	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("failed to parse signed URL: %v", err)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) == 0 {
		t.Fatalf("expected signer to be invoked")
	}
}

func TestDownloadURLRejectsMutatingMethod(t *testing.T) {
	signer := &fakeSigner{email: "signer@example.iam.gserviceaccount.com"}
	client, err := NewClient(signer)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	_, err = client.DownloadURL(context.Background(), "auric-proofs", "orders/ord_123/proofs/receipt.png", DownloadOptions{
		Method: "PUT",
	})
	if !errors.Is(err, errMethodNotAllowed) {
		t.Fatalf("expected errMethodNotAllowed, got %v", err)
	}
}

func TestDownloadURLExpiryTooLong(t *testing.T) {
	signer := &fakeSigner{email: "signer@example.iam.gserviceaccount.com"}
	client, err := NewClient(signer)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	_, err = client.DownloadURL(context.Background(), "auric-proofs", "orders/ord_123/proofs/receipt.png", DownloadOptions{
		ExpiresIn: 30 * time.Minute,
	})
	if !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected errExpiryTooLong, got %v", err)
	}
}

func TestDownloadURLRequiresBucketAndObject(t *testing.T) {
	signer := &fakeSigner{email: "signer@example.iam.gserviceaccount.com"}
	client, err := NewClient(signer)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	if _, err := client.DownloadURL(context.Background(), " ", "object", DownloadOptions{}); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected errInvalidBucket, got %v", err)
	}
	if _, err := client.DownloadURL(context.Background(), "bucket", " ", DownloadOptions{}); !errors.Is(err, errInvalidObject) {
		t.Fatalf("expected errInvalidObject, got %v", err)
	}
}

func TestAuthorizeProofAccess(t *testing.T) {
	cases := []struct {
		name     string
		identity *auth.Identity
		owner    string
		wantErr  bool
	}{
		{name: "owner may view", identity: &auth.Identity{UID: "cus_1"}, owner: "cus_1"},
		{name: "staff may view", identity: &auth.Identity{UID: "stf_1", Roles: []string{auth.RoleStaff}}, owner: "cus_1"},
		{name: "admin may view", identity: &auth.Identity{UID: "adm_1", Roles: []string{auth.RoleAdmin}}, owner: "cus_1"},
		{name: "stranger denied", identity: &auth.Identity{UID: "cus_2"}, owner: "cus_1", wantErr: true},
		{name: "nil identity denied", identity: nil, owner: "cus_1", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeProofAccess(tc.identity, tc.owner)
			if tc.wantErr && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
		})
	}
}
