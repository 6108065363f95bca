package main

import (
	"log"

	api "mailbridge-backend/cmd/api"
	mailDelivery "mailbridge-backend/internal/mail/delivery"
	maildomain "mailbridge-backend/internal/mail/domain"
	mailRepo "mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/internal/mail/scheduler"
	mailUsecase "mailbridge-backend/internal/mail/usecase"
	"mailbridge-backend/internal/search"
	"mailbridge-backend/pkg/config"
	"mailbridge-backend/pkg/database"
	"mailbridge-backend/pkg/embeddings"
	"mailbridge-backend/pkg/nylas"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&maildomain.Account{}, &maildomain.Thread{}, &maildomain.EmailAddress{}, &maildomain.Email{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepo := mailRepo.NewAccountRepository(db)
	mailStore := mailRepo.NewMailStore(db)

	// Embedding provider behind the factory; provider choice is config-driven
	provider := embeddings.NewProvider(embeddings.Config{
		Provider:      embeddings.ProviderType(cfg.EmbeddingProvider),
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})

	// Search index manager; restore persisted indexes for known accounts
	indexManager := search.NewManager(accountRepo, provider)
	if accounts, err := accountRepo.FindAll(); err != nil {
		log.Printf("[Startup] Failed to list accounts for index restore: %v", err)
	} else {
		for _, account := range accounts {
			if err := indexManager.Initialize(account.ID); err != nil {
				log.Printf("[Startup] Failed to initialize index for account %s: %v", account.ID, err)
			}
		}
		log.Printf("[Startup] Search indexes initialized for %d accounts", len(accounts))
	}

	// Remote client factory: one bearer-scoped client per sync run
	clientFactory := nylas.NewClientFactory(cfg.NylasAPIBaseURL, cfg.RemoteTimeout)

	// Initialize use cases (dependency injection)
	syncUsecaseInstance := mailUsecase.NewSyncUsecase(accountRepo, mailStore, clientFactory, indexManager, provider, cfg)

	// Periodic resync fallback for missed webhook deliveries
	resyncScheduler := scheduler.NewResyncScheduler(accountRepo, syncUsecaseInstance, cfg.SyncResyncInterval)
	resyncScheduler.Start()

	// Initialize HTTP handler
	mailHandler := mailDelivery.NewMailHandler(syncUsecaseInstance, indexManager, accountRepo, mailStore)
	handler := api.NewHandler(cfg, mailHandler)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
