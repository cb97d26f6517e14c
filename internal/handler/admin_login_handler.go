package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
)

// ListRecentLogins returns the latest login events across all users for
// the admin activity screen, newest first.
func ListRecentLogins(c echo.Context) error {
	log := logger.FromContext(c)

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return respondError(c, apperr.Validation("invalid limit"))
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var events []model.LoginEvent
	err := database.GetDB().WithContext(c.Request().Context()).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		log.Error("Failed to list login events", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"logins": events})
}
