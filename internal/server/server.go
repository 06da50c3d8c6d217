package server

import (
	"context"
	"log"
	"time"

	"github.com/buyandsale/boost/internal/config"
	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/handler"
	"github.com/buyandsale/boost/internal/infrastructure/backend"
	"github.com/buyandsale/boost/internal/metrics"
	"github.com/buyandsale/boost/internal/middleware"
	"github.com/buyandsale/boost/internal/repository"
	"github.com/buyandsale/boost/internal/service"
	"github.com/buyandsale/boost/internal/telemetry"
	"github.com/buyandsale/boost/internal/workflow"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database // optional, outcomes are only logged without it
	RedisClient *redis.Client
	Metrics     *metrics.Metrics
	Registry    *workflow.Registry       // optional, created when nil
	Scheduler   workflow.Scheduler       // optional, runtime timers when nil
	Outcomes    domain.OutcomeRepository // optional, overrides MongoDB
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config

	// Initialize repositories
	redisRepo := repository.NewRedisCacheRepository(deps.RedisClient)
	outcomeRepo := deps.Outcomes
	if outcomeRepo == nil && deps.MongoDB != nil {
		outcomeRepo = repository.NewMongoOutcomeRepository(deps.MongoDB)
	}

	// Backend client shared by every session; per-user copies carry credentials
	backendClient := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: cfg.Backend.UserAgent,
	}, deps.Metrics)

	// Initialize services
	catalogProvider := service.NewCatalogProvider(backendClient, redisRepo, cfg.Backend.CatalogTTL, deps.Metrics)
	eligibilityChecker := service.NewEligibilityChecker(catalogProvider, redisRepo, cfg.Backend.AssignedTTL)
	initiator := service.NewPaymentInitiator(cfg.Workflow.InitiateTimeout, deps.Metrics)
	tracker := service.NewPaymentTracker(cfg.Workflow.PollInterval, cfg.Workflow.PollMaxAttempts, deps.Metrics)
	journal := service.NewOutcomeJournal(outcomeRepo, 5*time.Second)

	var sandbox *service.SandboxPayments
	if cfg.Backend.Sandbox {
		sandbox = service.NewSandboxPayments(func() []domain.Forfait {
			forfaits, _ := catalogProvider.Snapshot()
			return forfaits
		}, cfg.Backend.SettleAfter)
	}

	registry := deps.Registry
	if registry == nil {
		registry = workflow.NewRegistry(cfg.Workflow.SessionIdleTTL, deps.Metrics)
	}

	userClient := func(creds middleware.Credentials, onLogout backend.LogoutFunc) *backend.Client {
		tokens := backend.NewTokenManager(backend.TokenPair{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
		}, backendClient.RefreshToken, onLogout, cfg.Backend.RefreshSkew)
		return backendClient.WithAuth(tokens)
	}

	sessionFactory := func(sessionID string, flow workflow.Flow, creds middleware.Credentials, target workflow.Session) *workflow.Orchestrator {
		client := userClient(creds, func() {
			log.Printf("[Server] credentials of user %s expired, closing session %s", creds.UserID, sessionID)
			_ = registry.Remove(sessionID, creds.UserID)
		})

		var payments workflow.PaymentBackend = client
		if sandbox != nil {
			payments = sandbox
		}

		return workflow.New(flow, workflow.Deps{
			Catalog:     catalogProvider,
			Eligibility: eligibilityChecker,
			Assignments: client,
			Payments:    payments,
			Initiator:   initiator,
			Tracker:     tracker,
			Scheduler:   deps.Scheduler,
			Navigator: workflow.NavigatorFunc(func(dest workflow.Destination) {
				log.Printf("[Server] session %s navigates to %s", sessionID, dest)
			}),
			OnResolved: func(outcome workflow.Outcome) {
				go func() {
					if err := journal.Record(context.Background(), outcome.Record(sessionID, creds.UserID)); err != nil {
						log.Printf("[Server] %v", err)
					}
				}()
			},
			Metrics:         deps.Metrics,
			TransitionDelay: cfg.Workflow.TransitionDelay,
		}, target)
	}

	// Initialize handlers
	boostHandler := handler.NewBoostHandler(registry, sessionFactory)
	forfaitHandler := handler.NewForfaitHandler(catalogProvider, eligibilityChecker, journal,
		func(creds middleware.Credentials) domain.AssignmentSource {
			return userClient(creds, nil)
		})

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Buy&Sale Boost Gateway",
		ErrorHandler: customErrorHandler,
		// Sessions outlive requests and keep strings read from them
		Immutable:    true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Refresh-Token",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(telemetry.FiberMiddleware())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"service":  "boost-gateway",
			"sessions": registry.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	v1 := app.Group("/v1")

	// Catalog (public)
	v1.Get("/forfaits", forfaitHandler.ListForfaits)
	v1.Post("/phone/check", forfaitHandler.CheckPhone)

	// Listing data (authenticated)
	products := v1.Group("/products")
	products.Use(middleware.BackendCredentials())
	products.Get("/:id/eligibility", forfaitHandler.GetEligibility)
	products.Get("/:id/outcomes", forfaitHandler.ListOutcomes)

	// ===========================================
	// BOOST WORKFLOW SESSIONS - /v1/boost/sessions/*
	// ===========================================
	sessions := v1.Group("/boost/sessions")
	sessions.Use(middleware.BackendCredentials())

	sessions.Post("/", boostHandler.CreateSession)
	sessions.Get("/:id", boostHandler.GetSession)
	sessions.Delete("/:id", boostHandler.CloseSession)

	sessions.Post("/:id/ad-created", boostHandler.AdCreated)
	sessions.Post("/:id/begin", boostHandler.Begin)
	sessions.Post("/:id/offer/accept", boostHandler.AcceptOffer)
	sessions.Post("/:id/offer/decline", boostHandler.DeclineOffer)
	sessions.Post("/:id/selection", boostHandler.Select)
	sessions.Post("/:id/selection/skip", boostHandler.SkipSelection)
	sessions.Post("/:id/selection/close", boostHandler.CloseSelection)
	sessions.Post("/:id/payment",
		middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL),
		boostHandler.SubmitPayment)
	sessions.Post("/:id/payment/cancel", boostHandler.CancelPayment)
	sessions.Post("/:id/tracking/cancel", boostHandler.CancelTracking)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
