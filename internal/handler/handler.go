package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/idp"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
)

// Package-level collaborators, wired once at startup by Init. The rental
// and identity provider clients stay nil when their upstream is not
// configured; handlers that need them answer with a configuration error.
var (
	cfg          *config.Config
	idpClient    *idp.Client
	rentalClient *rentalapi.Client
)

// Init wires the handler package with configuration and upstream clients.
func Init(c *config.Config, idpc *idp.Client, rentalc *rentalapi.Client) {
	cfg = c
	idpClient = idpc
	rentalClient = rentalc
}

// respondError converts any error into the JSON error contract
// {"error": code, "error_description": text} with the mapped status.
func respondError(c echo.Context, err error) error {
	appErr := apperr.From(err)
	body := echo.Map{
		"error":             appErr.Code,
		"error_description": appErr.Message,
	}
	if appErr.Email != "" {
		body["email"] = appErr.Email
	}
	return c.JSON(appErr.Status, body)
}

// sessionClaims pulls the validated session claims the auth middleware
// stored on the context.
func sessionClaims(c echo.Context) (*jwtutil.SessionClaims, error) {
	claims, ok := c.Get("claims").(*jwtutil.SessionClaims)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}
	return claims, nil
}

// requireRentalClient answers with a configuration error when the rental
// API is not configured.
func requireRentalClient() (*rentalapi.Client, error) {
	if rentalClient == nil {
		return nil, apperr.Configuration("rental API is not configured")
	}
	return rentalClient, nil
}

// requireIDPClient answers with a configuration error when the identity
// provider is not configured.
func requireIDPClient() (*idp.Client, error) {
	if idpClient == nil {
		return nil, apperr.Configuration("identity provider is not configured")
	}
	return idpClient, nil
}

// Hello returns a simple welcome message
func Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Bjugstad Utleie portal API",
		"version": "1.0.0",
	})
}
