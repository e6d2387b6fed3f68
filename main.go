package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/config"
	"github.com/tgregoire/invgov-backend/database"
	"github.com/tgregoire/invgov-backend/handlers"
	"github.com/tgregoire/invgov-backend/jobs"
	"github.com/tgregoire/invgov-backend/services"
	"github.com/tgregoire/invgov-backend/shared"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}
	if err := database.ValidateAndRepair(); err != nil {
		log.Printf("Schema validation warning: %v", err)
	}

	// Remote store adapter over the system of record's JSON API
	remoteConfig := shared.RemoteConfig{
		BaseURL:            cfg.RemoteBaseURL,
		APIToken:           cfg.RemoteAPIToken,
		HTTPRequestTimeout: cfg.GetRemoteTimeout(),
		RequestRateLimit:   500 * time.Millisecond,
		MaxRetryAttempts:   3,
		EnableMetrics:      true,
	}
	remoteStore := services.NewHTTPRemoteStore(remoteConfig)

	// Core services
	store := services.NewPostgresStore(database.DB)
	routing := services.NewRoutingResolver(store)
	syncService := services.NewCacheSyncService(store, remoteStore)
	requestService := services.NewRequestService(store, remoteStore, routing, syncService, 5)
	hierarchyLoader := services.NewHierarchyLoader(store)

	log.Println("Investment request backend services initialized:")
	log.Printf("  - Remote store adapter (base: %s, timeout: %v)", cfg.RemoteBaseURL, cfg.GetRemoteTimeout())
	log.Printf("  - Cache synchronizer (refresh every %v)", cfg.GetRefreshInterval())
	log.Printf("  - Sync flush job (every %v)", cfg.GetFlushInterval())

	// Background jobs
	refreshJob := jobs.NewCacheRefreshJob(syncService, cfg.GetRefreshInterval())
	flushJob := jobs.NewSyncFlushJob(requestService, cfg.GetFlushInterval())
	metricsJob := jobs.NewMetricsSummaryJob(requestService, syncService, remoteStore, 15*time.Minute)

	refreshJob.Start()
	flushJob.Start()
	metricsJob.Start()

	// Handlers
	requestHandler := handlers.NewRequestHandler(requestService, routing)
	cacheHandler := handlers.NewCacheHandler(syncService)
	lookupHandler := handlers.NewLookupHandler(requestService, store, routing)
	adminHandler := handlers.NewAdminHandler(hierarchyLoader, cfg.AdminToken)

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint reports liveness of the backing store connection
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.HealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Request Routes
	app.Get("/requests", requestHandler.List)
	app.Post("/requests", requestHandler.Create)
	app.Get("/requests/:id", requestHandler.Get)
	app.Put("/requests/:id", requestHandler.Update)
	app.Delete("/requests/:id", requestHandler.Delete)

	// Workflow Routes
	app.Post("/requests/:id/submit", requestHandler.Submit)
	app.Post("/requests/:id/approve", requestHandler.Approve)
	app.Post("/requests/:id/withdraw", requestHandler.Withdraw)
	app.Post("/requests/:id/send-back", requestHandler.SendBack)
	app.Post("/requests/:id/reject", requestHandler.Reject)
	app.Post("/requests/:id/deny", requestHandler.Deny)
	app.Post("/requests/:id/revise", requestHandler.Revise)
	app.Get("/requests/:id/history", requestHandler.History)
	app.Get("/requests/:id/steps", requestHandler.Steps)

	// Opportunity link Routes
	app.Get("/requests/:id/opportunities", requestHandler.ListOpportunities)
	app.Post("/requests/:id/opportunities", requestHandler.LinkOpportunity)
	app.Delete("/requests/:id/opportunities/:opportunity_id", requestHandler.UnlinkOpportunity)

	// Cache Routes
	app.Get("/cache/progress", cacheHandler.Progress)
	app.Post("/cache/refresh", cacheHandler.Refresh)
	app.Get("/cache/await-ready", cacheHandler.AwaitReady)

	// Lookup Routes
	app.Get("/summary", lookupHandler.Summary)
	app.Get("/accounts/search", lookupHandler.SearchAccounts)
	app.Get("/lookup/theaters-industries", lookupHandler.TheatersIndustries)
	app.Get("/budgets", lookupHandler.Budgets)
	app.Get("/user", lookupHandler.CurrentUser)
	app.Get("/approval-chain", lookupHandler.ApprovalChain)

	// Admin Routes
	app.Post("/admin/hierarchy/import", adminHandler.ImportHierarchy)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
