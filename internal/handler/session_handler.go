package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/statestore"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetSession returns the decoded session claims so the portal can render
// the signed-in user without another lookup.
func GetSession(c echo.Context) error {
	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, claims)
}

// RefreshSession silently re-issues the session token. The user row is
// re-read so role and profile edits made by administrators reach the
// session at the next refresh, and the original authentication time is
// preserved so the lifetime cap cannot be outrun by refreshing.
func RefreshSession(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	user := userFromClaims(claims)
	if claims.UserID != 0 {
		err := database.GetDB().First(&user, claims.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The account was deleted while the session lived
			log.Info("Refresh rejected, user no longer exists", zap.Uint("user_id", claims.UserID))
			return respondError(c, apperr.Unauthorized("account no longer exists"))
		}
		if err != nil {
			return respondError(c, err)
		}
	}

	token, err := jwtutil.GenerateToken(&user, time.Unix(claims.AuthTime, 0))
	if errors.Is(err, jwtutil.ErrSessionLifetimeExceeded) {
		log.Info("Refresh rejected, session lifetime cap reached", zap.Uint("user_id", claims.UserID))
		prometheus.RecordAuthError("session_lifetime_exceeded")
		return respondError(c, apperr.Unauthorized("session lifetime exceeded, sign in again"))
	}
	if err != nil {
		log.Error("Failed to refresh session token", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// SignOut denylists the session token until its natural expiry. Sign-out
// is best effort: a denylist failure is logged but the response still
// reports success, the token expires on its own shortly anyway.
func SignOut(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	if claims.ExpiresAt != nil {
		if err := statestore.DenylistToken(c.Request().Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			log.Error("Failed to denylist token", zap.Error(err))
		}
	}

	prometheus.DecreaseActiveSessions()
	log.Info("User signed out", zap.Uint("user_id", claims.UserID))

	return c.JSON(http.StatusOK, echo.Map{"message": "Signed out"})
}

// userFromClaims rebuilds a user value from session claims, for sessions
// that were issued without a database match.
func userFromClaims(claims *jwtutil.SessionClaims) model.User {
	user := model.User{
		ID:                claims.UserID,
		PhoneNumber:       claims.PhoneNumber,
		Name:              claims.Name,
		Role:              claims.Role,
		AddressStreet:     claims.AddressStreet,
		AddressPostalCode: claims.AddressPostalCode,
		AddressRegion:     claims.AddressRegion,
		TermsAccepted:     claims.TermsAccepted,
		TermsVersion:      claims.TermsVersion,
		LastLoginAt:       claims.LastLoginAt,
		CreatedAt:         claims.UserCreatedAt,
		UpdatedAt:         claims.UserUpdatedAt,
	}
	if claims.Email != "" {
		email := claims.Email
		user.Email = &email
	}
	return user
}
