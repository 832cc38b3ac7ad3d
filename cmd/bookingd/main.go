package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calendar-booking-backend/config"
	"calendar-booking-backend/internal/api"
	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/booking"
	"calendar-booking-backend/internal/db"
	"calendar-booking-backend/internal/notification"
	"calendar-booking-backend/internal/refund"
	"calendar-booking-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "booking-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Reminder.Enabled && (cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "") {
		logger.Fatalf("VAPID keys must be configured when reminders are enabled. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the store layer instance
	appStore := store.NewGormStore(gormDB, cfg.Booking.SnapshotTTL)
	logger.Println("data store initialized")

	// Domain services
	availabilitySvc := availability.NewService(appStore)

	refundPool := refund.NewWorkerPool(cfg.Payment.WorkerPoolSize, appStore, &refund.HTTPSender{URL: cfg.Payment.RefundURL})
	refundPool.Start(ctx)
	logger.Printf("refund worker pool started with %d workers", cfg.Payment.WorkerPoolSize)

	bookingSvc := booking.NewService(appStore, availabilitySvc, refundPool)

	// Booking-reminder worker
	if cfg.Reminder.Enabled {
		reminderWorker := notification.NewReminderWorker(gormDB, &webpushOptions, cfg.Reminder.Interval)
		go reminderWorker.Run(ctx)
		logger.Printf("reminder worker started, sweeping every %s", cfg.Reminder.Interval)
	}

	// Initialize router
	router := api.NewRouter(appStore, availabilitySvc, bookingSvc, &webpushOptions, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
