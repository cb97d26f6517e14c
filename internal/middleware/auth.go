package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/statestore"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT session token from the Authorization
// header and rejects tokens that were signed out.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "unauthorized",
				"error_description": "missing authorization token",
			})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "unauthorized",
				"error_description": "invalid authorization format, expected Bearer token",
			})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid session token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "unauthorized",
				"error_description": "invalid or expired session",
			})
		}

		// Reject signed-out tokens. A redis failure here lets the token
		// through: sign-out is best effort, login availability wins.
		denied, err := statestore.IsTokenDenylisted(c.Request().Context(), claims.ID)
		if err != nil {
			log.Error("Denylist check failed", zap.Error(err))
		} else if denied {
			log.Info("Rejected signed-out token", zap.Uint("user_id", claims.UserID))
			prometheus.RecordAuthError("signed_out_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "unauthorized",
				"error_description": "session has been signed out",
			})
		}

		// Store session info in context for later use
		c.Set("claims", claims)
		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)

		return next(c)
	}
}

// RequireSuperAdmin gates a route group to global super admins.
func RequireSuperAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		claims, ok := c.Get("claims").(*jwtutil.SessionClaims)
		if !ok {
			log.Error("Failed to get session claims from context")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "unauthorized",
				"error_description": "authentication required",
			})
		}

		if claims.Role != model.RoleSuperAdmin {
			log.Warn("Admin route denied", zap.Uint("user_id", claims.UserID))
			prometheus.RecordAuthError("forbidden")
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":             "forbidden",
				"error_description": "super admin role required",
			})
		}

		return next(c)
	}
}
