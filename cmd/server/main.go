package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/config"
	"github.com/parkhaus/garage-api/internal/database"
	"github.com/parkhaus/garage-api/internal/document"
	"github.com/parkhaus/garage-api/internal/handler"
	"github.com/parkhaus/garage-api/internal/mail"
	"github.com/parkhaus/garage-api/internal/queue"
	"github.com/parkhaus/garage-api/internal/repository"
	"github.com/parkhaus/garage-api/internal/router"
	"github.com/parkhaus/garage-api/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(&cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("database: %v", err)
	}
	if err := database.SeedSpots(ctx, db); err != nil {
		cancel()
		log.Fatalf("database: %v", err)
	}
	cancel()

	// nil when Redis is unreachable; caching and rate limiting then
	// degrade to no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	spots := repository.NewSpotRepo(db)
	history := repository.NewHistoryRepo(db)
	invoices := repository.NewInvoiceRepo(db)

	clk := clock.Real{}
	sessions := service.NewSessionManager(db, vehicles, spots, history, users, clk)
	invoiceSvc := service.NewInvoiceService(invoices, history,
		document.NewTextRenderer(cfg.InvoiceDir), mail.New(&cfg), clk)

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens),
		Spots:    handler.NewSpotHandler(spots),
		Parking:  handler.NewParkingHandler(sessions, invoiceSvc, history),
		Vehicles: handler.NewVehicleHandler(vehicles, sessions),
		Invoices: handler.NewInvoiceHandler(invoices, invoiceSvc),
	}

	e := echo.New()
	router.Register(e, h, cfg.JWTSecret, rdb)

	// Invoice emails go out asynchronously; the consumer reconnects on
	// broker failure and never takes the API down with it.
	go func() {
		if err := queue.StartInvoiceEmailConsumer(invoiceSvc); err != nil {
			log.Printf("invoice consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
