package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/alert"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/geo"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/handler"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/membership"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/store"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/cache"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/config"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/logger"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/notification"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zl := logger.L()

	db, err := store.Open(cfg.DBDriver, cfg.DSN)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		zl.Fatal("migrate database", zap.Error(err))
	}

	roleCache, err := cache.New(cfg.Cache)
	if err != nil {
		zl.Fatal("init cache", zap.Error(err))
	}
	defer roleCache.Close()

	// All components are constructed here once and passed by reference; no
	// global mutable state in the engine.
	hub := chat.NewHub(30 * time.Second)
	pusher := notification.NewJPush(cfg.Push, nil) // real SDK client injected in production builds
	location := geo.NewLookup(db, zl)
	members := membership.New(db, hub, location, roleCache, zl)

	resolver := alert.NewResolver(db, hub, location, zl)
	dispatcher := alert.NewDispatcher(db, hub, pusher, alert.DispatcherConfig{
		Concurrency:    cfg.Dispatch.Concurrency,
		Attempts:       cfg.Dispatch.Attempts,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
		BackoffBase:    cfg.Dispatch.BackoffBase,
		Timeout:        cfg.Dispatch.Timeout,
	}, zl)
	tracker := alert.NewTracker(db, zl)
	engine := alert.NewEngine(db, members, resolver, dispatcher, tracker, zl)
	escalator := alert.NewEscalator(db, resolver, dispatcher, tracker, members, cfg.Escalation.AckSetFrozen, zl)

	sched := scheduler.New(zl)
	sched.Every("escalation-scan", cfg.Escalation.ScanInterval, escalator)
	defer sched.Stop()

	cr := scheduler.NewCron(nil)
	if _, err := cr.Add("13 3 * * *", scheduler.FuncJob(func(ctx context.Context) {
		dispatcher.ReapStalePending(ctx, time.Hour)
	})); err != nil {
		zl.Fatal("schedule target reaper", zap.Error(err))
	}
	cr.Start()
	defer cr.Stop()

	gin.SetMode(cfg.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.New(engine, members, location, hub, cfg.APIPrefix, cfg.RateLimit).Register(router)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
