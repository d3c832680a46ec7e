package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"fundwatch/internal/config"
	cronrunner "fundwatch/internal/cron"
	"fundwatch/internal/db"
	"fundwatch/internal/handler"
	"fundwatch/internal/logger"
	"fundwatch/internal/models"
	"fundwatch/internal/quote"
	"fundwatch/internal/refresh"
	"fundwatch/internal/repository"
	filerepository "fundwatch/internal/repository/file"
	gormrepository "fundwatch/internal/repository/gorm"
	"fundwatch/internal/settle"
	"fundwatch/internal/valuation"
)

func main() {
	cfgPath := os.Getenv("FW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FW_ENV_ONLY"); envOnlyRaw != "" {
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

	var store repository.Repository
	var dbConn *db.DB
	if strings.EqualFold(cfg.Store.Backend, "postgres") {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	} else {
		store = filerepository.New(cfg.Store.PortfolioFile, cfg.Store.TransactionFile, logger)
	}

	estimateClient := &quote.EstimateClient{
		HTTP:    &http.Client{Timeout: cfg.Feeds.Estimate.Timeout},
		BaseURL: cfg.Feeds.Estimate.BaseURL,
		Logger:  logger,
	}
	historyClient := &quote.HistoryClient{
		HTTP:    &http.Client{Timeout: cfg.Feeds.History.Timeout},
		BaseURL: cfg.Feeds.History.BaseURL,
	}
	tickerChain := &quote.Chain{
		Sources: []quote.RateSource{
			&quote.TencentSource{HTTP: &http.Client{Timeout: cfg.Feeds.Tencent.Timeout}, BaseURL: cfg.Feeds.Tencent.BaseURL},
			&quote.SinaSource{HTTP: &http.Client{Timeout: cfg.Feeds.Sina.Timeout}, BaseURL: cfg.Feeds.Sina.BaseURL},
			&quote.EastmoneySource{HTTP: &http.Client{Timeout: cfg.Feeds.Eastmoney.Timeout}, BaseURL: cfg.Feeds.Eastmoney.BaseURL},
		},
		Logger: logger,
	}
	quoteService := &quote.Service{
		Estimate: estimateClient,
		Tickers:  tickerChain,
		History:  historyClient,
		Proxy:    quote.NewResolver(cfg.Proxy),
		Logger:   logger,
	}

	cache := valuation.NewCache()
	rewarmCache(store, cache, logger)

	calc := &valuation.Calculator{
		Quotes:      quoteService,
		Concurrency: cfg.Refresh.Concurrency,
		Logger:      logger,
	}
	scheduler := &refresh.Scheduler{
		Portfolio:   store,
		Cache:       cache,
		Calc:        calc,
		Logger:      logger,
		MinInterval: cfg.Refresh.MinFetchInterval,
	}
	if dbConn != nil {
		scheduler.Valuations = store
	}

	engine := settle.Engine{
		Repo:        store,
		Quotes:      quoteService,
		Logger:      logger,
		OrderCutoff: cfg.Trade.OrderCutoff,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Backend: cfg.Store.Backend}
	if dbConn != nil {
		healthHandler.DB = dbConn.Gorm
	}
	healthHandler.Register(router)

	dashboardHandler := &handler.DashboardHandler{
		Scheduler: scheduler,
		Quotes:    quoteService,
		Logger:    logger,
	}
	dashboardHandler.Register(router)

	streamHandler := &handler.StreamHandler{Scheduler: scheduler, Logger: logger}
	streamHandler.Register(router)

	portfolioHandler := &handler.PortfolioHandler{
		Repo:   store,
		Names:  estimateClient,
		Logger: logger,
	}
	portfolioHandler.Register(router)

	transactionHandler := &handler.TransactionHandler{
		Repo:   store,
		Engine: &engine,
		Logger: logger,
	}
	transactionHandler.Register(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	_, err = cronRunner.Add(cfg.Cron.Tick, func(ctx context.Context) {
		scheduler.Tick(ctx)
	})
	if err != nil {
		logger.Fatal("cron register refresh tick failed", zap.Error(err))
	}
	_, err = cronRunner.Add(cfg.Cron.CachePrune, func(ctx context.Context) {
		today := time.Now().Format("2006-01-02")
		if n := cache.PruneBefore(today); n > 0 {
			logger.Info("pruned stale cache entries", zap.Int("count", n))
		}
		if dbConn != nil {
			if n, err := store.DeleteValuationsBefore(ctx, today); err != nil {
				logger.Warn("valuation prune failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("pruned persisted valuations", zap.Int64("count", n))
			}
		}
	})
	if err != nil {
		logger.Warn("cron register cache prune failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

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

// rewarmCache restores today's persisted valuations so a same-day restart
// does not refetch finalized quotes.
func rewarmCache(store repository.Repository, cache *valuation.Cache, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	today := time.Now().Format("2006-01-02")
	items, err := store.ListValuationsByDate(ctx, today)
	if err != nil {
		logger.Warn("valuation rewarm failed", zap.Error(err))
		return
	}
	restored := 0
	for _, item := range items {
		var q models.Quote
		if err := json.Unmarshal(item.Payload, &q); err != nil {
			logger.Warn("skipping undecodable valuation payload",
				zap.String("code", item.Code), zap.Error(err))
			continue
		}
		if cache.Record(item.Code, item.NavDate, q) {
			restored++
		}
	}
	if restored > 0 {
		logger.Info("valuation cache rewarmed", zap.Int("entries", restored))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
