package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/auric-atelier/api/internal/platform/httpx"
)

// verifyTimeout bounds Firebase Admin SDK calls made on the request path.
const verifyTimeout = 5 * time.Second

var (
	// ErrTokenExpired signals that the Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the Firebase ID token failed verification.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserGetter loads Firebase user records.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// Authenticator turns verified Firebase ID tokens into request identities.
// It only authenticates; which roles may do what is decided at the resource,
// not here.
type Authenticator struct {
	verifier TokenVerifier
	users    UserGetter
}

// Option customises the Authenticator.
type Option func(*Authenticator)

// WithUserGetter enables lazy Firebase user loading on the identity.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) {
		a.users = getter
	}
}

// NewAuthenticator constructs an Authenticator around the token verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the Authorization bearer token and stores the
// resulting identity in the request context.
func (a *Authenticator) RequireFirebaseAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			verifyCtx, cancel := context.WithTimeout(r.Context(), verifyTimeout)
			token, err := a.verifier.VerifyIDToken(verifyCtx, tokenStr)
			cancel()
			if err != nil {
				respondVerificationError(r.Context(), w, err)
				return
			}

			identity := a.identityFromToken(token)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:    token.UID,
		Email:  stringClaim(token.Claims, "email"),
		Locale: stringClaim(token.Claims, "locale"),
		Roles:  roleClaims(token.Claims),
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{RoleUser}
	}
	if a.users != nil {
		identity.userLoader = func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
			if uid == "" {
				uid = token.UID
			}
			loadCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
			defer cancel()
			return a.users.GetUser(loadCtx, uid)
		}
	}
	return identity
}

// roleClaims reads the "role" custom claim, which Firebase delivers either as
// a single string or a list.
func roleClaims(claims map[string]any) []string {
	switch value := claims["role"].(type) {
	case string:
		if role := normaliseRole(value); role != "" {
			return []string{role}
		}
	case []any:
		roles := make([]string, 0, len(value))
		seen := make(map[string]struct{}, len(value))
		for _, item := range value {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
		if len(roles) > 0 {
			return roles
		}
	}
	return nil
}

func stringClaim(claims map[string]any, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func respondVerificationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		respondAuthError(ctx, w, http.StatusUnauthorized, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		respondAuthError(ctx, w, http.StatusUnauthorized, "invalid_token", "firebase id token invalid")
	default:
		respondAuthError(ctx, w, http.StatusUnauthorized, "invalid_token", "firebase id token verification failed")
	}
}
