package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
)

// ErrorHandler renders every error escaping a handler as
// {success:false, message, error?}. Internal failures are logged and
// downgraded to the generic message.
func ErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, echo.Map{"success": false, "message": apperr.InternalMessage}
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				body["message"] = msg
			} else {
				body["message"] = http.StatusText(he.Code)
			}
			if status >= http.StatusInternalServerError {
				log.WithError(err).WithField("path", c.Path()).Error("request failed")
			}
		default:
			ae := apperr.From(err)
			status = ae.Status()
			body["message"] = ae.Public()
			if len(ae.Fields) > 0 {
				body["error"] = ae.Fields
			}
			if ae.Kind == apperr.Internal {
				log.WithError(err).WithField("path", c.Path()).Error("request failed")
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}
