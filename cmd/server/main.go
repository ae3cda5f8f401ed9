package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"restopay_app/internal/app"
	"restopay_app/internal/config"
	"restopay_app/internal/handlers"
	"restopay_app/internal/logging"
	authMiddleware "restopay_app/internal/middleware"
	"restopay_app/internal/services"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}
	defer a.Close()

	// Initialize Firebase
	var verifier authMiddleware.TokenVerifier
	if cfg.Auth.Required {
		authClient, err := services.InitFirebase(cfg.Auth.FirebaseCredentialsPath)
		if err != nil {
			logger.Warn("Firebase initialization failed, admin routes will answer 503", zap.Error(err))
		} else {
			verifier = authClient
		}
	} else {
		logger.Warn("AUTH_REQUIRED=false, admin routes are open")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.NewErrorHandler(logger, cfg.IsProduction())

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(authMiddleware.RequestLogger(logger))

	handlers.Routes{
		Payments: handlers.NewPaymentHandler(a.Payments, a.Job, cfg.Job, cfg.IsProduction(), logger),
		Invoices: handlers.NewInvoiceHandler(a.Downloads),
		Webhooks: handlers.NewWebhookHandler(a.Payments, a.Store, handlers.WebhookConfig{
			Secret:            cfg.Webhook.Secret,
			RequireSignature:  cfg.Webhook.RequireSignature,
			MidtransServerKey: cfg.Midtrans.ServerKey,
		}, logger),
	}.Register(e, authMiddleware.RequireAuth(verifier, cfg.Auth.Required))

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
