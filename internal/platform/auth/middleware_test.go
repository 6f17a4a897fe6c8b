package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubUserGetter struct {
	record  *firebaseauth.UserRecord
	calls   int
	lastUID string
}

func (s *stubUserGetter) GetUser(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
	s.calls++
	s.lastUID = uid
	return s.record, nil
}

func TestRequireFirebaseAuthAttachesIdentity(t *testing.T) {
	verifier := &stubTokenVerifier{
		token: &firebaseauth.Token{
			UID: "uid-123",
			Claims: map[string]any{
				"role":   []any{"staff", "admin", "staff"},
				"locale": "en-GB",
				"email":  "staff@auricatelier.example",
			},
		},
	}
	userGetter := &stubUserGetter{record: &firebaseauth.UserRecord{
		UserInfo: &firebaseauth.UserInfo{UID: "uid-123", Email: "staff@auricatelier.example"},
	}}

	authn := NewAuthenticator(verifier, WithUserGetter(userGetter))

	handlerCalled := false
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		if identity.UID != "uid-123" {
			t.Fatalf("uid = %q", identity.UID)
		}
		if len(identity.Roles) != 2 {
			t.Fatalf("roles = %v, want staff and admin once each", identity.Roles)
		}
		if !identity.HasAnyRole(RoleStaff, RoleAdmin) {
			t.Fatalf("roles = %v", identity.Roles)
		}
		if identity.Locale != "en-GB" {
			t.Fatalf("locale = %q", identity.Locale)
		}
		if identity.Email != "staff@auricatelier.example" {
			t.Fatalf("email = %q", identity.Email)
		}

		loaded, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("user load: %v", err)
		}
		loadedAgain, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("second user load: %v", err)
		}
		if loaded != loadedAgain {
			t.Fatal("user record not cached")
		}

		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-value")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !handlerCalled {
		t.Fatal("handler not called")
	}
	if verifier.received != "token-value" {
		t.Fatalf("verifier received %q", verifier.received)
	}
	if userGetter.calls != 1 {
		t.Fatalf("user fetches = %d, want 1", userGetter.calls)
	}
	if userGetter.lastUID != "uid-123" {
		t.Fatalf("user loader uid = %q", userGetter.lastUID)
	}
}

func TestRequireFirebaseAuthRejectsExpiredToken(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{err: ErrTokenExpired})

	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run on an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "token_expired" {
		t.Fatalf("error = %v, want token_expired", body["error"])
	}
}

func TestRequireFirebaseAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1"}})

	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a bearer token")
	}))

	for _, header := range []string{"", "Bearer", "Basic dXNlcg==", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireFirebaseAuthDefaultsToUserRole(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{
		token: &firebaseauth.Token{UID: "uid-456", Claims: map[string]any{}},
	})

	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		if len(identity.Roles) != 1 || identity.Roles[0] != RoleUser {
			t.Fatalf("roles = %v, want [%s]", identity.Roles, RoleUser)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer missing-role-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
