package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/medtransit/nemt-scheduler/internal/rides"
	"github.com/medtransit/nemt-scheduler/pkg/common"
	"github.com/medtransit/nemt-scheduler/pkg/config"
	"github.com/medtransit/nemt-scheduler/pkg/database"
	"github.com/medtransit/nemt-scheduler/pkg/errors"
	"github.com/medtransit/nemt-scheduler/pkg/eventbus"
	"github.com/medtransit/nemt-scheduler/pkg/jwtkeys"
	"github.com/medtransit/nemt-scheduler/pkg/logger"
	"github.com/medtransit/nemt-scheduler/pkg/middleware"
	"github.com/medtransit/nemt-scheduler/pkg/ratelimit"
	redisclient "github.com/medtransit/nemt-scheduler/pkg/redis"
	"github.com/medtransit/nemt-scheduler/pkg/validation"
)

const (
	serviceName = "nemt-scheduler"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting scheduler",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	var (
		redisClient *redisclient.Client
		limiter     *ratelimit.Limiter
	)

	if cfg.RateLimit.Enabled {
		redisClient, err = redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize redis for rate limiting", zap.Error(err))
		}

		limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
			zap.Duration("window", cfg.RateLimit.Window()),
		)

		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}()
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without events", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			logger.Info("Connected to NATS", zap.String("stream", cfg.NATS.StreamName))
		}
	}

	repo := rides.NewRepository(db)
	service := rides.NewService(repo, cfg.Scheduler.NoShowGrace())
	if bus != nil {
		service.SetEventBus(bus)
	}

	handler := rides.NewHandler(service)

	keyCtx, keyCancel := context.WithCancel(context.Background())
	defer keyCancel()

	var keyProvider jwtkeys.KeyProvider
	if cfg.JWT.KeyFile != "" {
		keyManager, err := jwtkeys.NewManagerFromConfig(keyCtx, cfg.JWT)
		if err != nil {
			logger.Fatal("Failed to initialize JWT key manager", zap.Error(err))
		}
		keyManager.StartAutoRotation(keyCtx)
		keyProvider = keyManager
		logger.Info("JWT key rotation enabled", zap.String("key_file", cfg.JWT.KeyFile))
	} else {
		keyProvider = jwtkeys.NewStaticProvider(cfg.JWT.Secret)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := validation.Register(); err != nil {
		logger.Fatal("Failed to register request validators", zap.Error(err))
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(30 * time.Second))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.SanitizeRequest())
	router.Use(middleware.Metrics(serviceName))
	if limiter != nil {
		router.Use(middleware.RateLimit(limiter, cfg.RateLimit))
	}
	router.Use(middleware.ErrorHandler())

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := make(map[string]func() error)
	healthChecks["database"] = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Ping(ctx)
	}
	if redisClient != nil {
		healthChecks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Client.Ping(ctx).Err()
		}
	}
	if bus != nil {
		healthChecks["nats"] = func() error {
			if !bus.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router, keyProvider)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight event publishes finish before the bus connection drops.
	if err := service.DrainEvents(ctx); err != nil {
		logger.Warn("Timed out draining ride events", zap.Error(err))
	}

	logger.Info("Server stopped")
}
