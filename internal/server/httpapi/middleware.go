package httpapi

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
)

const claimsKey = "session"

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				args = append(args, "error", v.Error)
			}
			s.logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}

// sessionMiddleware requires a valid "Authorization: Bearer" session token
// and stores its claims on the context.
func (s *Server) sessionMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsKey,
		ParseTokenFunc: func(_ echo.Context, token string) (interface{}, error) {
			return s.sessions.Parse(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			s.logger.Debug(c.Request().Context(), "session rejected", "error", err)
			return writeError(c, common.ErrUnauthenticated)
		},
	})
}

func sessionClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}
