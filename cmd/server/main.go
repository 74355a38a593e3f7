// Command main is the entry point for the inkpost blog server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkpost/internal/config"
	"inkpost/internal/middleware"
	"inkpost/internal/observability"
	"inkpost/internal/server"
)

// @title inkpost API
// @version 1.0
// @description Minimal blog API with posts and image uploads

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:3388
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a JWT or the static API token.

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	middleware.Logger = middleware.NewLogger(cfg.Env)
	observability.SetLogger(middleware.Logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "inkpost",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	if !cfg.WritesConfigured() {
		if cfg.AllowInsecureWrites {
			middleware.Logger.Warn("no credentials configured, writes are open to everyone (ALLOW_INSECURE_WRITES)")
		} else {
			middleware.Logger.Warn("no credentials configured, all writes will be rejected")
		}
	}

	// Create server with dependency injection
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	app := srv.NewApp()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("server shutdown error", "error", err.Error())
		}

		// Shutdown server resources
		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server resource shutdown error", "error", err.Error())
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", "error", err.Error())
		}
	}()

	middleware.Logger.Info("server starting",
		"port", cfg.Port,
		"env", cfg.Env,
		"data_dir", cfg.DataDir,
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
