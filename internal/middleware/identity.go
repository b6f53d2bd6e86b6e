package middleware

// identity.go defines helpers shared across middleware files. The rate
// limiter keys buckets per user, so it needs the identity JWTAuth
// stored in the context. JWT numeric claims decode as float64, hence
// the type switch.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts a user identifier from the Echo context. It
// returns "anon" when no user is authenticated.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
