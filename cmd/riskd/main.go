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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"riskfolio/internal/aggregation"
	"riskfolio/internal/config"
	"riskfolio/internal/correlation"
	cronrunner "riskfolio/internal/cron"
	"riskfolio/internal/db"
	"riskfolio/internal/factor"
	"riskfolio/internal/greeks"
	"riskfolio/internal/handler"
	"riskfolio/internal/logger"
	"riskfolio/internal/marketdata"
	"riskfolio/internal/pipeline"
	gormrepository "riskfolio/internal/repository/gorm"
	"riskfolio/internal/snapshot"
	"riskfolio/internal/stress"
	"riskfolio/internal/valuation"

	_ "riskfolio/docs"
)

func main() {
	cfgPath := os.Getenv("RF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("RF_ENV_ONLY"); envOnlyRaw != "" {
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

	store := gormrepository.New(dbConn.Gorm)
	if err := store.SeedFactorDefinitions(context.Background(), db.DefaultFactors()); err != nil {
		logger.Warn("factor definition seed failed", zap.Error(err))
	}

	scenarios, err := stress.LoadScenarios(cfg.Stress.ScenarioPath)
	if err != nil {
		logger.Fatal("scenario config load failed", zap.Error(err))
	}
	logger.Info("scenario config loaded",
		zap.Int("version", scenarios.Version),
		zap.Int("scenarios", len(scenarios.Scenarios)),
	)

	providerHTTP := &http.Client{Timeout: cfg.MarketData.Timeout}
	provider := marketdata.NewHTTPProvider(providerHTTP, cfg.MarketData.ProviderBaseURL)
	cache := &marketdata.Cache{Repo: store, Provider: provider, Logger: logger}
	calendar := marketdata.NewCalendar(cfg.MarketData.Holidays)

	orchestrator := &pipeline.Orchestrator{
		Repo:         store,
		Cache:        cache,
		Calendar:     calendar,
		Valuation:    &valuation.Engine{Cache: cache, Calendar: calendar, Logger: logger},
		Greeks:       &greeks.Calculator{Cache: cache, Config: cfg.Greeks, Logger: logger},
		Aggregator:   &aggregation.Aggregator{Logger: logger},
		Factors:      &factor.Engine{Cache: cache, Repo: store, Config: cfg.Factor, Logger: logger},
		Correlations: &correlation.Engine{Cache: cache, Config: cfg.Correlation, Logger: logger},
		Stress:       &stress.Engine{Repo: store, Logger: logger},
		Snapshots:    &snapshot.Builder{Repo: store, Calendar: calendar, Logger: logger},
		Scenarios:    scenarios,
		Config:       cfg.Pipeline,
		Logger:       logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	snapshotHandler := &handler.SnapshotHandler{Repo: store}
	snapshotHandler.Register(engine)
	analyticsHandler := &handler.AnalyticsHandler{Repo: store}
	analyticsHandler.Register(engine)
	pipelineHandler := &handler.PipelineHandler{
		Repo:         store,
		Orchestrator: orchestrator,
		LookbackDays: cfg.MarketData.RefreshLookbackDays,
		Logger:       logger,
	}
	pipelineHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.MarketDataRefresh, func(ctx context.Context) {
			runDate := today()
			result, err := orchestrator.RefreshMarketData(ctx, runDate, cfg.MarketData.RefreshLookbackDays)
			if err != nil {
				logger.Warn("cron market data refresh failed", zap.Error(err))
				return
			}
			logger.Info("cron market data refresh ok",
				zap.Int("points", result.Updated),
				zap.Int("failed_symbols", len(result.Failed)),
			)
		})
		if err != nil {
			logger.Warn("cron register market data refresh failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.DailyRun, func(ctx context.Context) {
			runDate := today()
			report, err := orchestrator.RunAll(ctx, runDate, false)
			if err != nil {
				logger.Warn("cron pipeline run failed", zap.Error(err))
				return
			}
			logger.Info("cron pipeline run ok",
				zap.Time("run_date", report.RunDate),
				zap.Bool("skipped", report.Skipped),
				zap.Int("portfolios", report.Portfolios),
				zap.Int("succeeded", report.Succeeded),
				zap.Int("failed", report.Failed),
			)
		})
		if err != nil {
			logger.Warn("cron register daily run failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	} else {
		logger.Info("cron disabled, pipeline runs only via manual triggers")
	}

	errCh := make(chan error, 2)

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

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
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
