package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apporder "github.com/posbridge/backend/internal/application/order"
	apprealtime "github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/infrastructure/config"
	"github.com/posbridge/backend/internal/infrastructure/logger"
	"github.com/posbridge/backend/internal/infrastructure/persistence"
	"github.com/posbridge/backend/internal/infrastructure/platform"
	infrarealtime "github.com/posbridge/backend/internal/infrastructure/realtime"
	"github.com/posbridge/backend/internal/interfaces/http/handler"
	"github.com/posbridge/backend/internal/interfaces/http/middleware"
	"github.com/posbridge/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting POS Bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	orderRepo := persistence.NewOrderRepository(db, log)

	// Outbound platform callback client
	callbackClient := platform.NewCallbackClient(&cfg.Callback, log)

	// Broadcast hub for dashboard terminals. When the Redis bus is enabled,
	// events also reach terminals connected to other instances.
	hub := apprealtime.NewHub(log)

	var bus *infrarealtime.RedisBus
	if cfg.Realtime.BusEnabled {
		bus, err = infrarealtime.NewRedisBus(&cfg.Redis,
			infrarealtime.WithBusChannel(cfg.Realtime.BusChannel),
			infrarealtime.WithBusLogger(log),
		)
		if err != nil {
			log.Fatal("Failed to connect to Redis bus", zap.Error(err))
		}
		hub.AttachBus(bus)

		busCtx, busCancel := context.WithCancel(context.Background())
		defer busCancel()
		go func() {
			if err := bus.Subscribe(busCtx, hub); err != nil && busCtx.Err() == nil {
				log.Error("Redis bus subscription stopped", zap.Error(err))
			}
		}()
		defer func() {
			if err := bus.Close(); err != nil {
				log.Error("Error closing Redis bus", zap.Error(err))
			}
		}()
		log.Info("Redis event bus enabled", zap.String("channel", cfg.Realtime.BusChannel))
	}

	// Application services
	orderService := apporder.NewService(orderRepo, hub, log)
	statusService := apporder.NewStatusService(orderRepo, callbackClient, hub, log)

	// HTTP handlers
	orderHandler := handler.NewOrderHandler(orderService, statusService, log)
	streamHandler := handler.NewStreamHandler(hub, log,
		handler.WithStreamHeartbeat(cfg.Realtime.HeartbeatInterval))
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// API routes
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(orderHandler).
		Register(streamHandler).
		Register(systemHandler).
		Setup()

	// Create HTTP server with config. WriteTimeout stays unset so the SSE
	// stream is not cut off by the server.
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
