package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"cards/internal/clock"
	"cards/internal/config"
	"cards/internal/database"
	"cards/internal/handlers"
	"cards/internal/security"
	"cards/internal/service"
	"cards/internal/srs"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	startup := handlers.NewStartupStatus(
		handlers.StepDatabase,
		handlers.StepMigrations,
		handlers.StepServices,
		handlers.StepSeed,
		handlers.StepReady,
	)

	// Initialize database with config (supports sqlite, postgres, mysql)
	startup.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.CompleteStep(handlers.StepDatabase)

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	startup.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	startup.CompleteStep(handlers.StepMigrations)

	log.Println("Migrations completed successfully")

	startup.SetCurrentStep(handlers.StepServices)
	ctx := context.Background()
	c := clock.System{}

	scheduler, err := srs.NewScheduler(srs.SchedulerConfig{IncorrectPolicy: cfg.IncorrectPolicy, Clock: c})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	emailService, err := service.NewEmailService(ctx, service.EmailConfig{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
		Debug:      cfg.EmailDebug,
	})
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	if cfg.JWTSecret == "" {
		log.Println("API tokens disabled: JWT_SECRET not configured")
	}
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.APITokenTTL)

	csrfSecret := cfg.CSRFSecret
	if csrfSecret == "" {
		// Tokens stop validating across restarts and replicas
		log.Println("Warning: CSRF_SECRET not configured, using a random per-process secret")
		csrfSecret = security.GenerateSessionID()
	}
	csrf := security.NewCSRFGenerator(csrfSecret)
	limiter := security.NewRateLimiter(authRateLimit, authRateWindow, c)

	authService := service.NewAuthService(db, emailService, tokens, c, service.AuthConfig{
		SessionDuration: cfg.SessionDuration,
		ResetTokenTTL:   cfg.ResetTokenTTL,
	})
	deckService := service.NewDeckService(db, c, cfg.ChapterSize)
	studyService := service.NewStudyService(db, scheduler, c, cfg.ChapterSize)
	startup.CompleteStep(handlers.StepServices)

	startup.SetCurrentStep(handlers.StepSeed)
	if cfg.SeedDemoData {
		if err := service.NewSeedService(db, c).SeedDemoData(ctx); err != nil {
			log.Printf("Warning: Failed to seed demo data: %v", err)
		}
	}
	startup.CompleteStep(handlers.StepSeed)

	var oauthHandler *handlers.OAuthHandler
	if cfg.GoogleOAuthEnabled() {
		providers := map[string]handlers.OAuthProvider{
			"google": {
				Name:  "google",
				Label: "Google",
				Config: &oauth2.Config{
					ClientID:     cfg.GoogleClientID,
					ClientSecret: cfg.GoogleClientSecret,
					Endpoint:     google.Endpoint,
					Scopes:       []string{"openid", "email", "profile"},
				},
				UserInfoURL: handlers.GoogleUserInfoURL,
			},
		}
		oauthHandler = handlers.NewOAuthHandler(authService, providers, cfg.OAuthRedirectBaseURL, cfg.AppBaseURL)
		log.Println("Google sign in enabled")
	}

	router := &handlers.Router{
		Middleware: handlers.NewMiddleware(authService, csrf, limiter),
		Auth:       handlers.NewAuthHandler(authService, csrf),
		OAuth:      oauthHandler,
		Decks:      handlers.NewDeckHandler(deckService),
		Study:      handlers.NewStudyHandler(studyService, deckService),
		Startup:    startup,
	}

	// Start background cleanup of sessions, reset tokens and idle rate limit entries
	scheduled := cron.New()
	if _, err := scheduled.AddFunc("@hourly", func() {
		authService.RunCleanup(context.Background())
		if removed := limiter.Cleanup(); removed > 0 {
			log.Printf("Rate limiter dropped %d idle clients", removed)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule cleanup: %v", err)
	}
	scheduled.Start()

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	startup.MarkReady()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	<-scheduled.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
