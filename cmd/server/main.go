package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"whatsapp-outbound-gateway/internal/cache"
	"whatsapp-outbound-gateway/internal/config"
	"whatsapp-outbound-gateway/internal/handler"
	"whatsapp-outbound-gateway/internal/middleware"
	"whatsapp-outbound-gateway/internal/repository"
	"whatsapp-outbound-gateway/internal/service"
	"whatsapp-outbound-gateway/pkg/logger"
)

func main() {
	// Create .env from .env.example if not exists
	if err := ensureEnvFile(); err != nil {
		log.Printf("Warning: Failed to create .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.WhatsApp.LogLevel)
	appLogger.Info("Starting WhatsApp outbound gateway")

	// Initialize activity repository
	activityRepo, err := repository.NewActivityRepository(cfg.Activity.DBPath)
	if err != nil {
		appLogger.Error("Failed to initialize activity repository", "error", err)
		log.Fatalf("Failed to initialize activity repository: %v", err)
	}
	defer activityRepo.Close()
	go cleanupActivityPeriodically(activityRepo, cfg.Activity.Retention, appLogger)

	// Initialize WhatsApp service
	whatsappService, err := service.NewWhatsAppService(&cfg.WhatsApp, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize WhatsApp service", "error", err)
		log.Fatalf("Failed to initialize WhatsApp service: %v", err)
	}

	// Initialize send pipeline with its own quote cache
	quoteCache := cache.NewQuoteCache(cfg.WhatsApp.QuoteCacheLimit)
	sendAPI := service.NewSendAPI(whatsappService.Client(), quoteCache, activityRepo, cfg.WhatsApp.DefaultAccountID, appLogger)

	// Initialize reply webhook
	replyWebhook := service.NewReplyWebhookService(&cfg.Reply, appLogger)

	// Set dependencies
	whatsappService.SetSendAPI(sendAPI)
	whatsappService.SetReplyWebhook(replyWebhook, &cfg.Reply)
	whatsappService.SetActivityRecorder(activityRepo)

	// Connect to WhatsApp
	err = whatsappService.Connect()
	if err != nil {
		appLogger.Error("Failed to connect to WhatsApp", "error", err)
		log.Fatalf("Failed to connect to WhatsApp: %v\nPlease scan QR code first", err)
	}
	defer whatsappService.Disconnect()

	// Initialize handlers
	sendHandler := handler.NewSendHandler(sendAPI, cfg.Reply.MaxMediaBytes, cfg.Reply.TextLimit, appLogger)
	healthHandler := handler.NewHealthHandler(whatsappService, quoteCache, activityRepo, cfg, appLogger)
	groupsHandler := handler.NewGroupsHandler(whatsappService, appLogger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.APIKey, appLogger)

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/health", healthHandler.CheckHealth)

	// Protected routes
	mux.HandleFunc("/api/v1/send/text", authMiddleware.Authenticate(sendHandler.SendText))
	mux.HandleFunc("/api/v1/send/media", authMiddleware.Authenticate(sendHandler.SendMedia))
	mux.HandleFunc("/api/v1/send/poll", authMiddleware.Authenticate(sendHandler.SendPoll))
	mux.HandleFunc("/api/v1/send/reaction", authMiddleware.Authenticate(sendHandler.SendReaction))
	mux.HandleFunc("/api/v1/send/typing", authMiddleware.Authenticate(sendHandler.SendTyping))
	mux.HandleFunc("/api/v1/groups", authMiddleware.Authenticate(groupsHandler.ListGroups))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("WhatsApp outbound gateway started successfully",
		"address", addr,
		"whatsapp_connected", whatsappService.IsConnected(),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server stopped gracefully")
}

// cleanupActivityPeriodically prunes activity events past the retention window
func cleanupActivityPeriodically(repo *repository.ActivityRepository, retention time.Duration, appLogger *logger.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		count, err := repo.CleanupBefore(time.Now().Add(-retention))
		if err != nil {
			appLogger.Error("Failed to cleanup activity events", "error", err)
		} else if count > 0 {
			appLogger.Info("Cleaned up activity events", "count", count)
		}
	}
}

// ensureEnvFile creates .env from .env.example if .env doesn't exist
func ensureEnvFile() error {
	// Check if .env already exists
	if _, err := os.Stat(".env"); err == nil {
		return nil
	}

	// Check if .env.example exists
	if _, err := os.Stat(".env.example"); os.IsNotExist(err) {
		return fmt.Errorf(".env.example not found")
	}

	source, err := os.Open(".env.example")
	if err != nil {
		return fmt.Errorf("failed to open .env.example: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(".env")
	if err != nil {
		return fmt.Errorf("failed to create .env: %w", err)
	}
	defer destination.Close()

	_, err = io.Copy(destination, source)
	if err != nil {
		return fmt.Errorf("failed to copy .env.example to .env: %w", err)
	}

	log.Println("Created .env file from .env.example")
	return nil
}
