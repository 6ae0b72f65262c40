// Command server runs the trading signals API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/miky-rola/signals-backend/internal/cache"
	"github.com/miky-rola/signals-backend/internal/config"
	"github.com/miky-rola/signals-backend/internal/db"
	"github.com/miky-rola/signals-backend/internal/http/api"
	"github.com/miky-rola/signals-backend/internal/mail"
	"github.com/miky-rola/signals-backend/internal/ratelimit"
)

const (
	shutdownTimeout = 10 * time.Second
	authRateWindow  = time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	port := flag.Int("port", 8080, "listen port")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	// .env is optional; explicit environment wins either way.
	_ = godotenv.Load()

	cfg, errLoad := config.Load(config.ResolveConfigPath(*configPath))
	if errLoad != nil {
		log.WithError(errLoad).Fatal("load config")
	}
	if cfg.JWT.Secret == "" {
		log.Fatalf("jwt secret is required (set `jwt.secret` or env %s)", config.EnvJWTSecret)
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		log.WithError(errOpen).Fatal("open database")
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		log.WithError(errMigrate).Fatal("migrate database")
	}

	// Without Redis the cache and limiter degrade to in-process state.
	var store cache.Store
	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisStore, errStore := cache.NewRedisStore(client)
		if errStore != nil {
			log.WithError(errStore).Fatal("connect redis")
		}
		store = redisStore
		limiter = ratelimit.NewRedisLimiter(client, "ratelimit", authRateWindow)
		log.Infof("cache: redis at %s", cfg.Redis.Addr)
	} else {
		store = cache.NewMemoryStore()
		limiter = ratelimit.NewMemoryLimiter(authRateWindow)
		log.Warn("cache: no redis configured, using in-process store")
	}

	mailer := mail.NewSMTPSender(cfg.SMTP)

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	server := api.NewServer(conn, store, mailer, limiter, cfg.JWT)
	server.RegisterRoutes(engine)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", httpServer.Addr)
		if errServe := httpServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.WithError(errServe).Fatal("serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := httpServer.Shutdown(ctx); errShutdown != nil {
		log.WithError(errShutdown).Error("shutdown")
	}
}
