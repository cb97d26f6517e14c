package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/middleware"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetOnboarding reports the onboarding state of the session.
func GetOnboarding(c echo.Context) error {
	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"pending":          middleware.OnboardingPending(claims, cfg.Portal.TermsVersion),
		"terms_version":    cfg.Portal.TermsVersion,
		"accepted":         claims.TermsAccepted,
		"accepted_version": claims.TermsVersion,
	})
}

// AcceptTerms completes onboarding: the current terms version and the
// acceptance timestamp are stamped, and last_login_at gets its first value,
// which is what later logins key their timestamp stamping on. The response
// carries a re-issued session token with exactly these fields patched.
func AcceptTerms(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	if claims.UserID == 0 {
		// Session without a provisioned account cannot accept terms
		return respondError(c, apperr.Forbidden("no provisioned account for this session"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var user model.User
	err = database.GetDB().First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.Unauthorized("account no longer exists"))
	}
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"terms_accepted":    true,
		"terms_version":     cfg.Portal.TermsVersion,
		"terms_accepted_at": now,
		"last_login_at":     now,
	}
	if err := database.GetDB().Model(&user).Updates(updates).Error; err != nil {
		log.Error("Failed to stamp terms acceptance", zap.Error(err))
		return respondError(c, err)
	}

	user.TermsAccepted = true
	user.TermsVersion = cfg.Portal.TermsVersion
	user.TermsAcceptedAt = &now
	user.LastLoginAt = &now

	token, err := jwtutil.GenerateToken(&user, time.Unix(claims.AuthTime, 0))
	if err != nil {
		log.Error("Failed to re-issue session after terms acceptance", zap.Error(err))
		return respondError(c, err)
	}

	log.Info("Terms accepted",
		zap.Uint("user_id", user.ID),
		zap.String("terms_version", cfg.Portal.TermsVersion))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}
