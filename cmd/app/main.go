package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards_app/internal/auth"
	"rewards_app/internal/config"
	"rewards_app/internal/db"
	"rewards_app/internal/feed"
	httpServer "rewards_app/internal/http"
	"rewards_app/internal/http/handlers"
	"rewards_app/internal/http/middleware"
	"rewards_app/internal/ledger"
	"rewards_app/internal/logger"
	"rewards_app/internal/spin"
	"rewards_app/internal/store"
	"rewards_app/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")
	cfg := config.Load()
	auth.InitJWT()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool := db.Connect(cfg.DatabaseURL)
		defer pool.Close()
		st = store.NewPgStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemStore()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	middleware.InitRedisRateLimiter(redisClient)

	var bus feed.Bus
	if redisClient != nil {
		bus = feed.NewRedisBus(redisClient)
	} else {
		bus = feed.NewMemBus()
	}

	ledgerSvc := ledger.NewServiceWithRewards(st, bus, cfg.ReferralReward, cfg.SignupBonus)

	var stamps spin.StampStore
	if redisClient != nil {
		stamps = spin.NewRedisStamps(redisClient, cfg.SpinCooldown)
	} else {
		stamps = spin.NewMemStamps()
	}
	spinner := spin.NewScheduler(spin.NewWheel(), stamps)
	spinner.SetCooldown(cfg.SpinCooldown)

	hub := ws.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx, bus)

	r := gin.Default()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandler(st, ledgerSvc, spinner, handlers.RewardConfig{
		CheckinReward: cfg.CheckinReward,
		WatchReward:   cfg.WatchReward,
	})
	httpServer.RegisterRoutes(r, h, hub, version, cfg.APIRateLimit, cfg.APIRateWindow)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
