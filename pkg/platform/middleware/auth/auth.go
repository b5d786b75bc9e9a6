// Package auth authenticates the viewer of a redaction request from a bearer JWT.
//
// The identity platform issues HS256 tokens whose `sub` is the viewer id and
// whose `role` claim is the viewer's trust tier. The middleware only verifies
// and exposes those claims; matching them against the request body is the
// handler's job.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"veil/pkg/requestcontext"
)

// ViewerClaims are the JWT claims carried by viewer tokens.
type ViewerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ViewerClaims, error)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingRole  = errors.New("token has no role claim")
)

// HMACValidator verifies HS256 viewer tokens.
type HMACValidator struct {
	signingKey []byte
	audience   string
}

// NewHMACValidator builds a validator for the given key. An empty audience skips the aud check.
func NewHMACValidator(signingKey, audience string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey), audience: audience}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*ViewerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &ViewerClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*ViewerClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Role) == "" {
		return nil, ErrMissingRole
	}
	return claims, nil
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"success":false,"error":"%s","error_description":"%s"}`, errCode, errDesc)) //nolint:errcheck // headers already sent
}

// RequireViewer rejects requests without a valid bearer token and stores the
// authenticated viewer on the context. OPTIONS requests pass through so CORS
// preflights never need credentials.
func RequireViewer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithViewer(ctx, requestcontext.Viewer{
				ID:   claims.Subject,
				Role: claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
