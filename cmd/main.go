package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-wealth/advisory_service/internal/api/routes"
	"github.com/meridian-wealth/advisory_service/internal/domain/services/harvesting"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/adapters"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/advisory"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/cache"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/config"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/database"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/repositories"
	"github.com/meridian-wealth/advisory_service/internal/workers/washsale_monitor"
	"github.com/meridian-wealth/advisory_service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	zapLog := log.Zap()

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Redis cache; the service degrades to uncached reads when unavailable
	redisCache, err := cache.New(cfg.Redis, zapLog)
	if err != nil {
		log.Warn("Redis unavailable, running without cache", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Repositories
	settingsRepo := repositories.NewSettingsRepository(db, zapLog)
	positionRepo := repositories.NewPositionRepository(db, zapLog)
	transactionRepo := repositories.NewTransactionRepository(db, zapLog)
	relationshipRepo := repositories.NewRelationshipRepository(db, zapLog)
	opportunityRepo := repositories.NewOpportunityRepository(db, zapLog)
	washSaleRepo := repositories.NewWashSaleRepository(db, zapLog)

	// Replacement-suggestion provider (optional)
	var suggestions harvesting.SuggestionClient
	if cfg.Advisory.Provider == "gemini" && cfg.Advisory.APIKey != "" {
		provider := advisory.NewGeminiProvider(&advisory.ProviderConfig{
			APIKey:       cfg.Advisory.APIKey,
			Model:        cfg.Advisory.Model,
			MaxTokens:    cfg.Advisory.MaxTokens,
			Temperature:  cfg.Advisory.Temperature,
			Timeout:      time.Duration(cfg.Advisory.TimeoutSeconds) * time.Second,
			RateLimitRPM: cfg.Advisory.RateLimitRPM,
		}, zapLog)
		suggestions = advisory.NewClient(provider, time.Duration(cfg.Advisory.TimeoutSeconds)*time.Second, zapLog)
		log.Info("Replacement-suggestion provider enabled", "provider", cfg.Advisory.Provider)
	} else {
		log.Info("Replacement-suggestion provider disabled, using relationship graph only")
	}

	// Violation alert email
	emailService := adapters.NewEmailService(zapLog, adapters.EmailServiceConfig{
		APIKey:       cfg.Email.APIKey,
		FromEmail:    cfg.Email.FromEmail,
		FromName:     cfg.Email.FromName,
		Environment:  cfg.Environment,
		AdvisorEmail: adapters.StaticAdvisorDirectory(cfg.Email.AdvisorEmails, cfg.Email.AlertFallback),
	})

	// Harvesting engine
	engineConfig := &harvesting.Config{
		OpportunityTTLDays: cfg.Harvesting.OpportunityTTLDays,
		WashSaleWindowDays: cfg.Harvesting.WashSaleWindowDays,
		MaxRecommendations: cfg.Harvesting.MaxRecommendations,
	}
	resolver := harvesting.NewSettingsResolver(settingsRepo, redisCache, zapLog)
	scanner := harvesting.NewScanner(resolver, positionRepo, opportunityRepo, transactionRepo, relationshipRepo, washSaleRepo, engineConfig, zapLog)
	recommender := harvesting.NewRecommender(relationshipRepo, suggestions, zapLog)
	monitor := harvesting.NewMonitor(washSaleRepo, transactionRepo, emailService, zapLog)
	harvestingService := harvesting.NewService(resolver, scanner, recommender, monitor, opportunityRepo, engineConfig, zapLog)

	// Router
	router := routes.SetupRoutes(&routes.Dependencies{
		Config:            cfg,
		Logger:            log,
		DB:                db,
		HarvestingService: harvestingService,
	})

	// Wash-sale violation sweep scheduler
	monitorConfig := washsale_monitor.DefaultConfig()
	monitorConfig.Schedule = cfg.Monitor.Schedule
	monitorConfig.Timezone = cfg.Monitor.Timezone
	monitorConfig.RunOnStart = cfg.Monitor.RunOnStart

	scheduler, err := washsale_monitor.NewScheduler(harvestingService, washSaleRepo, monitorConfig, zapLog)
	if err != nil {
		log.Fatal("Failed to create wash-sale monitor", "error", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start wash-sale monitor", "error", err)
	}
	log.Info("Wash-sale monitor started", "schedule", cfg.Monitor.Schedule)

	// Create server
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if err := scheduler.Stop(); err != nil {
		log.Warn("Error stopping wash-sale monitor", "error", err)
	}

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}
