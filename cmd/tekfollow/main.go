package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/tekfollow/tekfollow/internal/config"
	"github.com/tekfollow/tekfollow/internal/database"
	"github.com/tekfollow/tekfollow/internal/handlers"
	"github.com/tekfollow/tekfollow/internal/jobs"
	"github.com/tekfollow/tekfollow/internal/middleware"
	"github.com/tekfollow/tekfollow/internal/ratelimit"
	"github.com/tekfollow/tekfollow/internal/services"
	"github.com/tekfollow/tekfollow/internal/tekmetric"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting declined-job follow-up service...")

	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// One limiter shared by every upstream caller.
	limiter := ratelimit.New(cfg.UpstreamRatePerSecond, cfg.UpstreamBurst)
	gateway := tekmetric.NewClient(tekmetric.Config{
		BaseURL:      cfg.TekmetricBaseURL,
		ClientID:     cfg.TekmetricClientID,
		ClientSecret: cfg.TekmetricClientSecret,
		ShopID:       cfg.ShopID,
	}, limiter)

	stop := make(chan struct{})
	verifier := jobs.NewAppointmentVerifier(db, gateway)
	go verifier.Start(cfg.VerifierInterval, stop)
	reconciler := jobs.NewSalesReconciler(db, gateway)
	go reconciler.Start(cfg.ReconcilerInterval, stop)

	contactService := services.NewContactService(db)
	analyticsService := services.NewAnalyticsService(db)

	httpHandler := handlers.NewHTTPHandler(
		handlers.NewContactHandler(contactService),
		handlers.NewRepairOrderHandler(db),
		handlers.NewSalesHandler(db),
		handlers.NewAnalyticsHandler(analyticsService),
	)

	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)

	cors := middleware.NewCORSMiddleware(cfg.AllowedOrigins...)
	handler := middleware.RequestIDMiddleware(cors.Wrap(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("HTTP server listening on :%d", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
