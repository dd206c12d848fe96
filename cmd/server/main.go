package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"medgame/internal/config"
	"medgame/internal/content"
	"medgame/internal/database"
	"medgame/internal/guardrail"
	"medgame/internal/handlers"
	"medgame/internal/llm"
	"medgame/internal/patient"
	"medgame/internal/repository"
	"medgame/internal/security"
	"medgame/internal/service"
	"medgame/internal/session"
)

func main() {
	cfg := config.Load()

	catalog, err := content.Load()
	if err != nil {
		log.Fatalf("Failed to load content tables: %v", err)
	}
	log.Printf("Content loaded: %d conditions, %d levels", len(catalog.Cards()), catalog.MaxLevel())

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, provider, closeClient := newLLMClient(ctx, cfg)
	defer closeClient()
	log.Printf("Language model provider: %s", provider)

	store := session.NewStore(
		session.WithTTL(cfg.SessionTTL),
		session.WithMaxTurns(cfg.MaxTranscriptTurns),
	)
	store.StartReaper(ctx, cfg.SessionReapInterval)

	limiter := security.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	limiter.StartCleanup(ctx, 5*time.Minute)

	consultations := service.NewConsultationService(
		catalog,
		patient.NewGenerator(catalog),
		store,
		client,
		guardrail.New(client, guardrail.DefaultTimeout),
		repository.NewResultRepository(db),
	)

	middleware := handlers.NewMiddleware(limiter, security.NewOriginPolicy(cfg.AllowedOrigins))
	gameHandler := handlers.NewGameHandler(consultations, provider)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.NewRouter(gameHandler, middleware, cfg.StaticFilesPath),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s/game/api", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// newLLMClient picks the configured provider. Without an API key the server
// still runs, with every generation call failing soft.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, string, func()) {
	noop := func() {}

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Println("Warning: GEMINI_API_KEY is not set, running offline")
			return llm.Offline{}, "offline", noop
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.ChatModel)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		return client, "gemini", func() {
			if err := client.Close(); err != nil {
				log.Printf("Error closing Gemini client: %v", err)
			}
		}
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			log.Println("Warning: OPENAI_API_KEY is not set, running offline")
			return llm.Offline{}, "offline", noop
		}
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ChatModel), "openai", noop
	default:
		log.Fatalf("Unsupported LLM_PROVIDER %q (want openai or gemini)", cfg.LLMProvider)
		return nil, "", noop
	}
}
