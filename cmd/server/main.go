package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"kisanpos/backend/internal/audit"
	"kisanpos/backend/internal/cache"
	"kisanpos/backend/internal/config"
	"kisanpos/backend/internal/httpapi"
	"kisanpos/backend/internal/service"
	"kisanpos/backend/internal/store"
	"kisanpos/backend/internal/store/memory"
	"kisanpos/backend/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.SQLitePath != "" {
		db, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			log.WithError(err).Fatal("sqlite unavailable and SQLITE_PATH is set; refusing to start with in-memory fallback")
		}
		repo = db
		closers = append(closers, db.Close)
		log.Info("repository: sqlite")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	customerCache := cache.CustomerCache(cache.NoopCustomerCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCustomerCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, using noop cache")
		} else {
			customerCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	sink, err := audit.NewSink(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatalf("audit directory %s unavailable", cfg.DataDir)
	}

	svc := service.New(repo, sink, customerCache, log,
		cfg.PurchaseStockMode, time.Duration(cfg.CustomerCacheTTLSeconds)*time.Second)

	carried, err := svc.CarryForwardOpeningStock(ctx, time.Now())
	if err != nil {
		log.WithError(err).Warn("opening stock carry-forward failed")
	} else if carried > 0 {
		log.WithField("rows", carried).Info("opening stock carried forward")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("shop backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close error")
		}
	}

	log.Info("server stopped")
}
