package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/controller"
	"github.com/rryowa/blog_admin/internal/util"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var respErr util.MyResponseError
		if errors.As(err, &respErr) {
			writeReason(c, log, respErr.Status, respErr.Msg)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			writeReason(c, log, he.Code, fmt.Sprint(he.Message))
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		writeReason(c, log, http.StatusInternalServerError, "internal server error")
	}
}

func writeReason(c echo.Context, log *zap.SugaredLogger, status int, reason string) {
	if err := c.JSON(status, controller.ErrorResponse{Reason: reason}); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}

