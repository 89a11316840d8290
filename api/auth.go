/*
auth.go - Bearer-token middleware for admin endpoints

PURPOSE:
  Terminal provisioning, session control, seeding and delivery acks are
  back-office operations: they authenticate with an HS256 bearer token
  rather than a device api key. The middleware verifies the signature
  and the admin role claim; handlers behind it never re-check.

TOKEN SHAPE:
  {"sub": "<operator>", "role": "admin", "exp": ...}

SEE ALSO:
  - server.go: Which routes sit behind requireAdmin
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/pos-core/pos"
)

const roleAdmin = "admin"

// adminClaims is the expected token payload.
type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// requireAdmin verifies the Authorization bearer token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "authorize"

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, op, pos.ErrUnauthorized.WithDetail("missing bearer token"))
			return
		}

		var claims adminClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, op, pos.ErrUnauthorized.WithDetail("invalid bearer token"))
			return
		}
		if claims.Role != roleAdmin {
			writeError(w, op, pos.ErrUnauthorized.WithDetail("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MintAdminToken issues a short-lived admin token. Exposed for operator
// tooling and tests; production deployments are expected to bring their
// own issuer sharing the secret.
func MintAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	claims := adminClaims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
