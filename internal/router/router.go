// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/parkhaus/garage-api/internal/config"
	"github.com/parkhaus/garage-api/internal/handler"
	"github.com/parkhaus/garage-api/internal/middleware"
	"github.com/parkhaus/garage-api/internal/model"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
	Auth     *handler.AuthHandler
	Spots    *handler.SpotHandler
	Parking  *handler.ParkingHandler
	Vehicles *handler.VehicleHandler
	Invoices *handler.InvoiceHandler
}

// Register wires all routes onto the Echo instance. Unauthenticated
// operations live under /v1/auth plus the spot browse endpoints;
// everything else requires a valid access token, and the billing admin
// endpoints additionally require the ADMIN role.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Auth endpoints that do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/refresh-access", h.Auth.RefreshAccess)
	// Logout works with either a bearer token or a refresh token in
	// the body, so it stays outside the JWT middleware.
	g.POST("/logout", h.Auth.Logout)
	e.POST("/v1/logout", h.Auth.Logout)

	// Spot browsing is public so drivers can check occupancy before
	// entering. The response cache and rate limiter guard these, the
	// hottest routes in the API.
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	browse := e.Group("/v1/spots",
		middleware.NewTokenBucket(rlCfg, rdb),
		middleware.NewRedisCache(cacheCfg, rdb))
	browse.GET("", h.Spots.List)
	browse.GET("/available", h.Spots.ListAvailable)
	browse.GET("/:id", h.Spots.Get)

	// Everything below requires a valid access token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.GET("/me", h.Auth.Me)

	// Vehicles.
	auth.POST("/vehicles", h.Vehicles.Create)
	auth.GET("/vehicles", h.Vehicles.List)
	auth.GET("/vehicles/:id", h.Vehicles.Get)
	auth.PUT("/vehicles/:id", h.Vehicles.Update)
	auth.DELETE("/vehicles/:id", h.Vehicles.Delete)

	// Parking sessions.
	auth.POST("/parking/start", h.Parking.Start)
	auth.POST("/parking/end", h.Parking.End)
	auth.GET("/parking/my", h.Parking.MyParked)
	auth.GET("/parking/status/:vehicle_id", h.Parking.Status)
	auth.GET("/parking/history", h.Parking.MyHistory)

	// Invoices.
	auth.GET("/invoices", h.Invoices.List)
	auth.GET("/invoices/:id", h.Invoices.Get)
	auth.GET("/invoices/:id/download", h.Invoices.Download)

	// Billing administration.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/invoices/:id/resend", h.Invoices.Resend)
	admin.PUT("/invoices/:id/status", h.Invoices.UpdateStatus)
}
