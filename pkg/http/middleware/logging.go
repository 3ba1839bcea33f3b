package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests. Paths listed in skip are not logged;
// websocket upgrades and scrape endpoints would otherwise report their
// whole connection lifetime as request latency.
func RequestLogging(skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			for _, p := range skip {
				if strings.HasPrefix(req.URL.Path, p) {
					return next(c)
				}
			}

			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			log.Printf("[%s] %s %s - %d (%s)",
				req.Method,
				req.RequestURI,
				req.RemoteAddr,
				c.Response().Status,
				latency,
			)

			return err
		}
	}
}
