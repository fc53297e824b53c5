package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type contextKey uuid.UUID

var UserContextKey = contextKey(uuid.New())

type AuthMiddleware struct {
	jwtKey []byte
}

func NewAuthMiddleware(jwtKey []byte) *AuthMiddleware {
	return &AuthMiddleware{jwtKey: jwtKey}
}

// Authenticate validates the Bearer token and stores the decoded claims in
// the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.Warn("Missing authorization header")
			response.Error(w, appErrors.UnauthorizedError("Authorization header is required"))

			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			logger.Warn("Invalid authorization header format")
			response.Error(w, appErrors.UnauthorizedError("Invalid authorization format"))

			return
		}

		claims := &models.Claims{}

		token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				logger.Error("Unexpected signing method used in JWT", slog.Any("alg", t.Header["alg"]))

				return nil, appErrors.BadRequestError("unexpected signing method")
			}

			return m.jwtKey, nil
		})
		if err != nil {
			logger.Warn("JWT parsing failed", slog.String("error", err.Error()))
			response.Error(w, appErrors.UnauthorizedError("Invalid or expired token"))

			return
		}

		if !token.Valid {
			logger.Warn("Invalid token")
			response.Error(w, appErrors.UnauthorizedError("Invalid token"))

			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			logger.Warn("Expired token", slog.String("userId", claims.UserID.String()))
			response.Error(w, appErrors.UnauthorizedError("Token expired"))

			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)

		requestScopedLogger := logger.With(slog.String("userId", claims.UserID.String()))
		ctx = context.WithValue(ctx, loggerKey, requestScopedLogger)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireAdmin guards admin-only routes. It must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, appErrors.UnauthorizedError("Authentication required"))

			return
		}

		if claims.Role != models.RoleAdmin {
			response.Error(w, appErrors.ForbiddenError("Admin access required"))

			return
		}

		next.ServeHTTP(w, r)
	}
}

func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)

	return claims, ok
}
