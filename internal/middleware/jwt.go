// Package middleware holds the reusable Echo middleware: bearer-token
// authentication, the Redis token-bucket limiter and the Redis
// response cache.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates a Bearer access token signed with secret and
// injects the subject and roles claims into the request context as
// "user_id" (uint64) and "roles" ([]string). Wrap protected routes
// with it; handlers read the subject via Subject and reject requests
// that claim to act as someone else.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				// Only HMAC tokens are issued; anything else is forged.
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// The numeric sub claim decodes as float64; normalize it so
			// Subject always hands back a uint64.
			var sub uint64
			switch v := claims["sub"].(type) {
			case float64:
				sub = uint64(v)
			case json.Number:
				if n, err := v.Int64(); err == nil {
					sub = uint64(n)
				}
			}
			if sub == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set("user_id", sub)

			// The roles claim round-trips as []interface{}; normalize it
			// so downstream code always sees []string.
			roles := []string{}
			if raw, ok := claims["roles"].([]interface{}); ok {
				for _, r := range raw {
					if s, ok := r.(string); ok {
						roles = append(roles, s)
					}
				}
			}
			c.Set("roles", roles)
			return next(c)
		}
	}
}

// Subject returns the authenticated user id JWTAuth stored on the
// context, or 0 on a context the middleware never ran on.
func Subject(c echo.Context) uint64 {
	id, _ := c.Get("user_id").(uint64)
	return id
}
