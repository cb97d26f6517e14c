package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware_BurstThenBlocked(t *testing.T) {
	e := echo.New()
	handler := middleware.RateLimitMiddleware(1, 3)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/signin", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, handler(c))
		return rec.Code
	}

	// The burst passes, the next request is turned away.
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("203.0.113.7"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7"))

	// Limits are per client, another IP still has a full bucket.
	assert.Equal(t, http.StatusOK, send("203.0.113.8"))
}
