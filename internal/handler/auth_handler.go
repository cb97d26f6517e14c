package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/reconcile"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/statestore"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Login screen error codes carried in the redirect query. The portal
// frontend keys its localized messages on these.
const (
	loginErrorAccountNotLinked = "AccountNotLinked"
	loginErrorUserNotFound     = "UserNotFound"
	loginErrorAccessDenied     = "AccessDenied"
	loginErrorConfiguration    = "Configuration"
	loginErrorOAuthCallback    = "OAuthCallback"
)

// SignIn begins the OAuth authorization-code flow: a state nonce is stored
// and the client is redirected to the identity provider.
func SignIn(c echo.Context) error {
	log := logger.FromContext(c)

	client, err := requireIDPClient()
	if err != nil {
		log.Error("Sign-in attempted without identity provider configuration")
		return loginErrorRedirect(c, loginErrorConfiguration, "")
	}

	state := uuid.NewString()
	if err := statestore.SaveLoginState(c.Request().Context(), state, c.QueryParam("return_to")); err != nil {
		log.Error("Failed to store login state", zap.Error(err))
		return loginErrorRedirect(c, loginErrorOAuthCallback, "")
	}

	log.Info("Sign-in started", zap.String("provider", client.Provider))
	return c.Redirect(http.StatusFound, client.AuthCodeURL(state))
}

// Callback finishes the OAuth flow: the code is exchanged for a verified
// profile, the profile is reconciled against the user database, and on an
// allow outcome a session token is issued and handed to the portal in the
// URL fragment.
func Callback(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	client, err := requireIDPClient()
	if err != nil {
		return loginErrorRedirect(c, loginErrorConfiguration, "")
	}

	prometheus.RecordLogin(client.Provider)

	// Provider-reported errors, e.g. the user cancelled at the provider
	if provErr := c.QueryParam("error"); provErr != "" {
		log.Info("Identity provider returned error", zap.String("error", provErr))
		if provErr == "access_denied" {
			return loginErrorRedirect(c, loginErrorAccessDenied, "")
		}
		return loginErrorRedirect(c, loginErrorOAuthCallback, "")
	}

	// The state nonce must match an in-flight sign-in and is single use
	returnTo, err := statestore.ConsumeLoginState(ctx, c.QueryParam("state"))
	if err != nil {
		log.Warn("Login state mismatch", zap.Error(err))
		return loginErrorRedirect(c, loginErrorOAuthCallback, "")
	}

	profile, err := client.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		log.Error("Code exchange failed", zap.Error(err))
		return loginErrorRedirect(c, loginErrorOAuthCallback, "")
	}

	// Decide the sign-in outcome
	rec := reconcile.New(database.GetDB(), log)
	outcome := rec.Reconcile(ctx, profile)
	prometheus.RecordLoginOutcome(outcome.Decision.String())

	switch outcome.Decision {
	case reconcile.DecisionAccountNotLinked:
		return loginErrorRedirect(c, loginErrorAccountNotLinked, outcome.Email)
	case reconcile.DecisionUserNotFound:
		return loginErrorRedirect(c, loginErrorUserNotFound, outcome.Email)
	}

	// Allow or degraded allow. Without a matched user the session is built
	// from the provider profile alone, mirroring default provider behavior.
	user := outcome.User
	if user == nil {
		user = &model.User{
			PhoneNumber: reconcile.CanonicalPhone(profile.PhoneNumber),
			Name:        profile.Name,
			Role:        model.RoleCustomer,
		}
		if profile.Email != "" {
			email := profile.Email
			user.Email = &email
		}
	}

	token, err := jwtutil.GenerateToken(user, time.Now())
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		return loginErrorRedirect(c, loginErrorOAuthCallback, "")
	}

	if outcome.User != nil {
		if err := rec.RecordLogin(ctx, outcome.User, profile.Provider); err != nil {
			// Audit trail failure never blocks an allowed sign-in
			log.Error("Failed to record login", zap.Error(err))
		}
	}

	prometheus.IncreaseActiveSessions()
	log.Info("Sign-in completed",
		zap.String("provider", profile.Provider),
		zap.String("outcome", outcome.Decision.String()),
		zap.Uint("user_id", user.ID))

	target := cfg.Portal.BaseURL + "/auth/complete#token=" + url.QueryEscape(token)
	if returnTo != "" && returnTo != "/" {
		target += "&return_to=" + url.QueryEscape(returnTo)
	}
	return c.Redirect(http.StatusFound, target)
}

// DevBypass issues a session for a provisioned phone number without the
// identity provider. Only live when explicitly enabled, guarded by a
// bcrypt-hashed shared secret, and never provisions users.
func DevBypass(c echo.Context) error {
	log := logger.FromContext(c)

	if !cfg.Auth.DevBypassEnabled {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":             "not_found",
			"error_description": "not found",
		})
	}

	// Parse request
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Secret      string `json:"secret"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse dev bypass request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "validation",
			"error_description": "invalid request",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.DevBypassSecretHash), []byte(req.Secret)); err != nil {
		log.Warn("Dev bypass rejected, bad secret")
		prometheus.RecordAuthError("dev_bypass_bad_secret")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "unauthorized",
			"error_description": "invalid credentials",
		})
	}

	phone := reconcile.CanonicalPhone(req.PhoneNumber)
	if phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "validation",
			"error_description": "phone_number must be +<digits>",
		})
	}

	var user model.User
	err := database.GetDB().Where("phone_number = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("Dev bypass for unprovisioned phone")
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":             "user_not_found",
			"error_description": "no provisioned account for this phone number",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	token, err := jwtutil.GenerateToken(&user, time.Now())
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		return respondError(c, err)
	}

	rec := reconcile.New(database.GetDB(), log)
	if err := rec.RecordLogin(c.Request().Context(), &user, "dev-bypass"); err != nil {
		log.Error("Failed to record login", zap.Error(err))
	}

	prometheus.RecordLogin("dev-bypass")
	prometheus.IncreaseActiveSessions()
	log.Info("Dev bypass sign-in", zap.Uint("user_id", user.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

// loginErrorRedirect sends the browser back to the portal login screen
// with the error code and, when available, the asserted email for display.
func loginErrorRedirect(c echo.Context, code, email string) error {
	target := cfg.Portal.BaseURL + "/login?error=" + code
	if email != "" {
		target += "&email=" + url.QueryEscape(email)
	}
	return c.Redirect(http.StatusFound, target)
}
