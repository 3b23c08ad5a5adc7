package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/listing"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sweepInterval is how often idle sessions are evicted
const sweepInterval = time.Minute

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       database.Service
	redis    *redis.Client
	sessions *session.Registry
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	currency, err := money.ParseCurrency(cfg.Currency.Code, cfg.Currency.Symbol)
	if err != nil {
		return nil, err
	}

	// Create router
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.DB())
	cartLineRepo := repository.NewCartLineRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())
	inventory := repository.NewInventoryCache(redisClient, logger)

	// Initialize services
	reconciler := listing.NewReconciler(productRepo, inventory, listing.Config{
		DefaultLimit:   cfg.Listing.DefaultLimit,
		RetryAttempts:  cfg.Listing.InventoryRetries,
		RetryBaseDelay: cfg.Listing.InventoryRetryBase,
	}, logger)
	sessions := session.NewRegistry(func(id string) cart.LineStore {
		return cartLineRepo.ForSession(id)
	}, logger, cart.WithCurrency(currency), cart.WithInventory(inventory))
	sessionService := service.NewSessionService(cfg.Session.Secret, cfg.Session.TTL)
	checkoutService := service.NewCheckoutService(orderRepo, inventory, logger, service.WithCartPurger(cartLineRepo))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health()
		health := map[string]interface{}{
			"status":          "ok",
			"database":        dbHealth,
			"active_sessions": sessions.Len(),
		}
		status := http.StatusOK
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "down"
		} else {
			health["redis"] = "up"
		}
		if dbHealth["status"] != "up" {
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// Initialize handlers
	catalogHandler := transport.NewCatalogHandler(reconciler, currency, logger)
	cartHandler := transport.NewCartHandler(sessions, reconciler, logger)
	checkoutHandler := transport.NewCheckoutHandler(sessions, checkoutService, currency, logger)

	// Register routes
	router.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.SessionMiddleware(sessionService, logger))
		r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit",
		}, logger))

		catalogHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r)
		checkoutHandler.RegisterRoutes(r)
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:   cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		sessions: sessions,
	}

	return server, nil
}

// PrimeInventory copies stored inventory levels into the live cache for
// variants it does not track yet
func (s *Server) PrimeInventory(ctx context.Context) error {
	levels, err := repository.NewProductRepository(s.db.DB()).InventoryLevels(ctx)
	if err != nil {
		return err
	}
	_, err = repository.NewInventoryCache(s.redis, s.logger).PrimeMissing(ctx, levels)
	return err
}

// RunSessionSweeper evicts idle carts until ctx is cancelled
func (s *Server) RunSessionSweeper(ctx context.Context) {
	s.sessions.Run(ctx, sweepInterval, s.config.Session.MaxIdle)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
