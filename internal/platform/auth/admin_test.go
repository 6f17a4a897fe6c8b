package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminTestSecret = "unit-test-signing-secret"

func mintAdminToken(t *testing.T, secret string, claims AdminClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed signing token: %v", err)
	}
	return signed
}

func TestAdminVerifier_AcceptsValidToken(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret, WithAdminIssuer("https://admin.example.com"))
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	tokenStr := mintAdminToken(t, adminTestSecret, AdminClaims{
		Role:  "admin",
		Email: "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "adm_001",
			Issuer:    "https://admin.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifier.Verify(tokenStr)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "adm_001" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Email != "ops@example.com" {
		t.Fatalf("unexpected email %s", claims.Email)
	}
}

func TestAdminVerifier_RejectsWrongIssuer(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret, WithAdminIssuer("https://admin.example.com"))
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	tokenStr := mintAdminToken(t, adminTestSecret, AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://rogue.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenStr); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Fatalf("expected ErrAdminTokenInvalid, got %v", err)
	}
}

func TestAdminVerifier_RejectsExpiredToken(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret, WithAdminLeeway(0))
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	tokenStr := mintAdminToken(t, adminTestSecret, AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenStr); !errors.Is(err, ErrAdminTokenExpired) {
		t.Fatalf("expected ErrAdminTokenExpired, got %v", err)
	}
}

func TestAdminVerifier_RejectsCustomerRole(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret)
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	tokenStr := mintAdminToken(t, adminTestSecret, AdminClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := verifier.Verify(tokenStr); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Fatalf("expected ErrAdminTokenInvalid, got %v", err)
	}
}

func TestRequireAdminJWT_StoresIdentity(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret)
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	tokenStr := mintAdminToken(t, adminTestSecret, AdminClaims{
		Role:  "admin",
		Email: "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "adm_001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	handlerCalled := false
	handler := verifier.RequireAdminJWT()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.UID != "adm_001" {
			t.Fatalf("unexpected uid %s", identity.UID)
		}
		if !identity.HasRole(RoleAdmin) {
			t.Fatalf("expected admin role, got %v", identity.Roles)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if !handlerCalled {
		t.Fatalf("expected handler to run")
	}
}

func TestRequireAdminJWT_MissingHeader(t *testing.T) {
	verifier, err := NewAdminVerifier(adminTestSecret)
	if err != nil {
		t.Fatalf("NewAdminVerifier returned error: %v", err)
	}

	handler := verifier.RequireAdminJWT()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not execute without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated error, got %v", body["error"])
	}
}
