package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/api/services"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/utils"
)

type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func unauthorized(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
		Success: false,
		Message: "Unauthorized",
	})
}

// tokenFromRequest reads the session cookie, falling back to a bearer
// Authorization header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(services.TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// AuthMiddleware resolves the caller to an active account and stores it as
// the request principal. The role is read from the database on every
// request, so role changes apply immediately.
func AuthMiddleware(secret string, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				unauthorized(w)
				return
			}

			claims, err := services.ParseToken(secret, tokenStr)
			if err != nil {
				unauthorized(w)
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := users.Get(r.Context(), userID)
			if err != nil || !user.IsActive {
				unauthorized(w)
				return
			}

			p := &access.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
			next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
		})
	}
}

// Require lets the request through only if the principal holds c.
func Require(c access.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := access.Check(access.FromContext(r.Context()), c); err != nil {
			utils.ErrorResponse(w, err)
			return
		}
		next(w, r)
	}
}
