package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/blocosbh/bloco-agenda/internal/config"
	"github.com/blocosbh/bloco-agenda/internal/database"
	"github.com/blocosbh/bloco-agenda/internal/handler"
	"github.com/blocosbh/bloco-agenda/internal/queue"
	"github.com/blocosbh/bloco-agenda/internal/repository"
	"github.com/blocosbh/bloco-agenda/internal/router"
)

func main() {
	cfg := config.Load() // Load environment config (.env merged in)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.InitSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("init schema: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient() // nil when unreachable; cache/ratelimit degrade
	if rdb == nil {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	overrides := repository.NewOverrideRepo(db)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterEvents(e, handler.NewEventHandler(events), rdb)
	router.RegisterAgenda(e, handler.NewAgendaHandler(overrides, events), cfg.JWTSecret)

	// Background consumer for status.changed messages; runs its own
	// reconnect loop for the life of the process.
	go func() {
		if err := queue.StartStatusConsumer(); err != nil {
			log.Printf("status consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
