package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// BearerAuth returns an Echo middleware that requires
// "Authorization: Bearer <token>" on proxy requests. An empty token disables
// the check. Preflights, routes other than "/" and the info page (GET or
// HEAD "/" without a url key) pass through; every other request to "/" is a
// proxy request, even with an empty or missing url.
func BearerAuth(token string) echo.MiddlewareFunc {
	if token == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return echomw.KeyAuthWithConfig(echomw.KeyAuthConfig{
		Skipper: func(c echo.Context) bool {
			req := c.Request()
			if req.Method == http.MethodOptions || c.Path() != "/" {
				return true
			}
			_, hasURL := req.URL.Query()["url"]
			return !hasURL && (req.Method == http.MethodGet || req.Method == http.MethodHead)
		},
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(_ error, c echo.Context) error {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "Unauthorized",
			})
		},
	})
}
