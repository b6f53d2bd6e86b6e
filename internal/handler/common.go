package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID reads the authenticated user's ID set by the JWT
// middleware. JWT numeric claims decode as float64, so both forms are
// accepted. A zero return means the request was not authenticated.
func currentUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// pathID parses a numeric path parameter. Returns 0 on malformed input.
func pathID(c echo.Context, name string) uint64 {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
