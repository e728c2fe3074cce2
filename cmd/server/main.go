package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cacheredis "creatorvault/internal/cache/redis"
	"creatorvault/internal/config"
	cronrunner "creatorvault/internal/cron"
	"creatorvault/internal/db"
	"creatorvault/internal/handler"
	"creatorvault/internal/locks"
	"creatorvault/internal/logger"
	"creatorvault/internal/metrics"
	"creatorvault/internal/prediction"
	"creatorvault/internal/referral"
	"creatorvault/internal/repository"
	gormrepository "creatorvault/internal/repository/gorm"
	"creatorvault/internal/settlement"
	"creatorvault/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CV_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CV_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)
	keyedLocks := locks.NewKeyed()

	var priceCache *cacheredis.PriceCache
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.New(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, price cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			priceCache = cacheredis.NewPriceCache(redisClient, cfg.PriceCache.TTL)
		}
	}

	metricsHTTP := &http.Client{Timeout: cfg.Metrics.Timeout}
	metricsClient := metrics.NewClient(metricsHTTP, cfg.Metrics.BaseURL)

	ledger := &referral.Ledger{Repo: store, Locks: keyedLocks, Logger: logger}
	settlementSvc := &settlement.Service{
		Repo:   store,
		Ledger: ledger,
		Fees:   cfg.Fees,
		Locks:  keyedLocks,
		Logger: logger,
	}
	predictionSvc := &prediction.Service{
		Repo:   store,
		Reader: metricsClient,
		Locks:  keyedLocks,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	hub := stream.NewHub(logger)

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	tokenHandler := &handler.TokenHandler{
		Repo:             store,
		Settlement:       settlementSvc,
		Prices:           priceCache,
		Hub:              hub,
		DefaultSteepness: cfg.Curve.DefaultSteepness,
		Logger:           logger,
	}
	tokenHandler.Register(engine)
	referralHandler := &handler.ReferralHandler{Ledger: ledger}
	referralHandler.Register(engine)
	predictionHandler := &handler.PredictionHandler{
		Repo:    store,
		Service: predictionSvc,
		Reader:  metricsClient,
		Hub:     hub,
	}
	predictionHandler.Register(engine)
	engine.GET("/ws", gin.WrapH(hub))

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.AutoResolve.Enabled {
		_, err = cronRunner.Add(cfg.AutoResolve.Spec, func(ctx context.Context) {
			result, err := predictionSvc.AutoResolveSweep(ctx, time.Now().UTC(), cfg.AutoResolve.BatchSize)
			if err != nil {
				logger.Warn("auto-resolve sweep failed", zap.Error(err))
				return
			}
			if result.Scanned > 0 {
				logger.Info("auto-resolve sweep",
					zap.Int("scanned", result.Scanned),
					zap.Int("resolved", result.Resolved),
					zap.Int("skipped", result.Skipped),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register auto-resolve failed", zap.Error(err))
		}
	}
	if priceCache != nil && cfg.PriceCache.RefreshSpec != "" {
		_, err = cronRunner.Add(cfg.PriceCache.RefreshSpec, func(ctx context.Context) {
			tokens, err := store.ListTokens(ctx, repository.ListTokensParams{Limit: 1000})
			if err != nil {
				logger.Warn("price cache refresh: list tokens failed", zap.Error(err))
				return
			}
			now := time.Now().UTC()
			for _, token := range tokens {
				if err := priceCache.Set(ctx, token.ID, token.CurrentPrice, now); err != nil {
					logger.Warn("price cache refresh failed", zap.String("token", token.ID), zap.Error(err))
				}
			}
		})
		if err != nil {
			logger.Warn("cron register price refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
