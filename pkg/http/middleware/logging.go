package middleware

import (
	"time"

	applogger "BtcTrader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug level and failures at warn.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote_ip", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", time.Since(start)),
			}
			if err != nil || c.Response().Status >= 400 {
				if err != nil {
					fields = append(fields, applogger.Error(err))
				}
				l.Warn("http request", fields...)
				return err
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
