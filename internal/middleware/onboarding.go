package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"go.uber.org/zap"
)

// OnboardingPending reports whether the session still has to pass the
// onboarding gate: terms not accepted, accepted at an older version, or
// never logged in before.
func OnboardingPending(claims *jwtutil.SessionClaims, currentTermsVersion string) bool {
	return !claims.TermsAccepted ||
		claims.TermsVersion != currentTermsVersion ||
		claims.LastLoginAt == nil
}

// RequireOnboarding blocks portal routes until the session has completed
// onboarding. Pending sessions may only reach the onboarding endpoints,
// which are wired outside this middleware.
func RequireOnboarding(currentTermsVersion string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
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

			if OnboardingPending(claims, currentTermsVersion) {
				log.Info("Request blocked pending onboarding", zap.Uint("user_id", claims.UserID))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":              "forbidden",
					"error_description":  "terms acceptance required",
					"onboarding_pending": true,
				})
			}

			return next(c)
		}
	}
}
