package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultAdminLeeway = 30 * time.Second

var (
	// ErrAdminTokenExpired signals that the admin bearer token has expired.
	ErrAdminTokenExpired = errors.New("auth: admin token expired")
	// ErrAdminTokenInvalid signals that the admin bearer token failed verification.
	ErrAdminTokenInvalid = errors.New("auth: admin token invalid")
)

// AdminClaims captures the JWT claims issued to back-office operators.
type AdminClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AdminVerifier validates HS256 bearer tokens minted for the admin surface.
type AdminVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// AdminOption customises AdminVerifier behaviour.
type AdminOption func(*AdminVerifier)

// WithAdminIssuer restricts accepted tokens to the given issuer.
func WithAdminIssuer(issuer string) AdminOption {
	return func(v *AdminVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithAdminLeeway overrides the clock skew tolerance applied to time-based claims.
func WithAdminLeeway(d time.Duration) AdminOption {
	return func(v *AdminVerifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithAdminClock injects the time source used for claim validation.
func WithAdminClock(now func() time.Time) AdminOption {
	return func(v *AdminVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewAdminVerifier constructs an AdminVerifier keyed by the shared signing secret.
func NewAdminVerifier(secret string, opts ...AdminOption) (*AdminVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: admin jwt secret is required")
	}

	verifier := &AdminVerifier{
		secret: []byte(secret),
		leeway: defaultAdminLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// Verify parses and validates the token, returning its claims.
func (v *AdminVerifier) Verify(tokenStr string) (*AdminClaims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, ErrAdminTokenInvalid
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrAdminTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return v.now().Add(-v.leeway) }),
	)

	claims := &AdminClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrAdminTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAdminTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrAdminTokenInvalid
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrAdminTokenInvalid, claims.Issuer)
	}
	if role := normaliseRole(claims.Role); role != RoleAdmin && role != RoleStaff {
		return nil, fmt.Errorf("%w: role %q not permitted", ErrAdminTokenInvalid, claims.Role)
	}

	return claims, nil
}

// RequireAdminJWT verifies the Authorization bearer token and stores the admin identity in context.
func (v *AdminVerifier) RequireAdminJWT() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if v == nil {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			claims, err := v.Verify(tokenStr)
			if err != nil {
				if errors.Is(err, ErrAdminTokenExpired) {
					respondAuthError(r.Context(), w, http.StatusUnauthorized, "token_expired", "admin token expired")
					return
				}
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "invalid_token", "admin token verification failed")
				return
			}

			identity := &Identity{
				UID:   claims.Subject,
				Email: claims.Email,
				Roles: []string{normaliseRole(claims.Role)},
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
