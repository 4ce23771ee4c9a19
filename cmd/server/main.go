// Package main runs the webinar funnel HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-webinar/backend/config"
	"github.com/lumen-webinar/backend/internal/auth"
	"github.com/lumen-webinar/backend/internal/billing"
	"github.com/lumen-webinar/backend/internal/calls"
	"github.com/lumen-webinar/backend/internal/funnel"
	"github.com/lumen-webinar/backend/internal/leads"
	"github.com/lumen-webinar/backend/internal/middleware"
	"github.com/lumen-webinar/backend/internal/payments"
	"github.com/lumen-webinar/backend/internal/realtime"
	"github.com/lumen-webinar/backend/internal/sessions"
	"github.com/lumen-webinar/backend/internal/worker"
	"github.com/lumen-webinar/backend/pkg/database"
	"github.com/lumen-webinar/backend/pkg/queue"
	"github.com/lumen-webinar/backend/pkg/redis"
	"github.com/lumen-webinar/backend/pkg/response"
	"github.com/lumen-webinar/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	tokenService := auth.NewTokenService(cfg.Channel.TokenSecret, cfg.Channel.TokenExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Funnel
	funnelRepo := funnel.NewRepository(pool)
	engine := funnel.NewEngine(funnelRepo, logger)
	funnelHandler := funnel.NewHandler(engine, tokenService, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionSvc := sessions.NewService(sessionRepo, hub, logger)
	sessionHandler := sessions.NewHandler(sessionSvc, tokenService, logger)

	// Realtime control signals (REST publish side)
	signalHandler := realtime.NewHandler(hub, sessionSvc, logger)

	// Mark the attendance as attended when a viewer joins the live topic.
	// Runs outside any request, so it gets its own deadline.
	hub.SetJoinHandler(func(sessionID, attendeeID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.MarkAttended(ctx, attendeeID, sessionID); err != nil {
			logger.Warn("mark attended failed",
				zap.Error(err),
				zap.String("session_id", sessionID.String()),
				zap.String("attendee_id", attendeeID.String()))
		}
	})

	// Payments webhook
	billingRepo := billing.NewRepository(pool)
	webhookHandler := payments.NewWebhookHandler(
		engine,
		billingRepo,
		cfg.Payments.WebhookSecret,
		time.Duration(cfg.Payments.ToleranceSeconds)*time.Second,
		logger,
	)

	// Call status
	callRepo := calls.NewRepository(pool)
	callHandler := calls.NewHandler(callRepo, logger)

	// Lead exports
	jobQueue := queue.NewQueue(rdb.Client, logger)
	exportRepo := leads.NewRepository(pool)
	exportHandler := leads.NewHandler(exportRepo, funnelRepo, jobQueue, s3Client, logger)
	exportProcessor := worker.NewLeadExportProcessor(exportRepo, funnelRepo, s3Client, jobQueue, logger)

	validateToken := func(token string) (attendeeID, sessionID uuid.UUID, role string, err error) {
		claims, err := tokenService.Validate(token)
		if err != nil {
			return uuid.Nil, uuid.Nil, "", err
		}
		return claims.AttendeeID, claims.SessionID, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Sessions
	router.POST("/sessions", sessionHandler.Create)
	router.GET("/sessions", sessionHandler.List)
	router.GET("/sessions/:id", sessionHandler.GetByID)
	router.PATCH("/sessions/:id/status", sessionHandler.SetStatus)

	// Funnel
	router.POST("/sessions/:id/register", funnelHandler.Register)
	router.GET("/sessions/:id/funnel", funnelHandler.GetFunnel)
	router.POST("/sessions/:id/attendees/:attendeeId/promote", funnelHandler.Promote)

	// Realtime control signals
	router.POST("/sessions/:id/signals", signalHandler.PublishSignal)
	router.GET("/sessions/:id/audience", signalHandler.AudienceCount)

	// Lead exports
	router.POST("/sessions/:id/leads/export", exportHandler.RequestExport)
	router.GET("/leads/exports/:id", exportHandler.GetExport)
	router.GET("/leads/exports/:id/download-url", exportHandler.GetDownloadURL)

	// Call status
	router.PATCH("/attendees/:id/call-status", callHandler.UpdateCallStatus)

	// Webhooks (no token; HMAC signature verified in handler)
	router.POST("/webhooks/payments", webhookHandler.HandleEvent)

	// WebSocket (channel token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, validateToken))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (lead export to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go exportProcessor.Run(workerCtx)
		logger.Info("lead export worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
