// Command alertreceiver prints security alerts posted by the admin API. Point ALERT_WEBHOOK_URL at it in development.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/util"
)

func main() {
	logger := util.NewZapLogger()
	addr := os.Getenv("ALERT_RECEIVER_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/", func(c echo.Context) error {
		var a service.AlertPayload
		if err := json.NewDecoder(c.Request().Body).Decode(&a); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error parsing JSON")
		}
		logger.Infow("Received security alert",
			"event", a.Event,
			"address", a.Address,
			"occurredAt", a.OccurredAt,
		)
		return c.String(http.StatusOK, "Webhook received!")
	})

	logger.Infof("Alert receiver listening on %s", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
