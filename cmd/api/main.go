package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-init-do/barterhub/internal/barter"
	"github.com/sudo-init-do/barterhub/internal/config"
	"github.com/sudo-init-do/barterhub/internal/notify"
	"github.com/sudo-init-do/barterhub/internal/store"
)

func main() {
	cfg := config.Load()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	st := store.NewRedis(rdb)
	if err := st.Ping(context.Background()); err != nil {
		log.Printf("Warning: redis not reachable at %s: %v", cfg.RedisAddr, err)
	}

	// Notification queue: client for producing, in-process worker for
	// consuming, same as a single-binary deployment.
	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer queueClient.Close()

	mailer := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	worker := notify.StartWorker(cfg.RedisAddr, cfg.NotifyConcurrency, notify.NewServeMux(mailer))
	defer worker.Shutdown()

	notifier := notify.New(st, queueClient)
	engine := barter.NewEngine(st, notifier)

	// Periodic listing expiry sweep.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			n, err := engine.ExpireListings(context.Background())
			if err != nil {
				log.Printf("[engine] listing sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[engine] expired %d listings", n)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "barterhub"})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := st.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "redis unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	barter.NewHandler(engine, notifier).Register(e)

	log.Printf("BarterHub API listening on %s", cfg.HTTPAddr)
	e.Logger.Fatal(e.Start(cfg.HTTPAddr))
}
