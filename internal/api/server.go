package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/gateway"
	"seatkeeper/internal/handlers"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/middleware"
	"seatkeeper/internal/repository"
	"seatkeeper/internal/search"
	"seatkeeper/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	store    *cache.HoldStore
	nats     *messaging.NATSClient
	search   *search.ElasticsearchClient
	services *service.Services
	hub      *gateway.Hub
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := cache.NewHoldStore(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// NATS is optional: Redis alone is enough for the gateway.
	var natsClient *messaging.NATSClient
	var mirrors []messaging.SeatEventPublisher
	if cfg.NATS.Enabled {
		natsClient, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, seat events stay on Redis only", "error", err)
		} else {
			mirrors = append(mirrors, natsClient)
		}
	}

	deps := service.Deps{
		Repos:  repository.NewRepositories(db),
		Store:  store,
		Events: messaging.NewFanout(store, mirrors...),
	}
	var es *search.ElasticsearchClient
	if cfg.Elasticsearch.Enabled {
		es, err = search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, searching the database", "error", err)
			es = nil
		} else {
			deps.Index = es
		}
	}
	services := service.NewServices(deps, cfg)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Identity(cfg.Auth.JWTSecret))

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		store:    store,
		nats:     natsClient,
		search:   es,
		services: services,
		hub:      gateway.NewHub(store, store, services.Reservations),
	}

	server.setupRoutes()

	return server, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services.Holds, s.services.Showtimes, s.services.Reservations)

	api := s.router.Group("/api")
	{
		showtimes := api.Group("/showtimes")
		{
			showtimes.POST("", h.CreateShowtime)
			showtimes.POST("/batch", h.BatchCreateShowtimes)
			showtimes.GET("", h.ListShowtimes)
			showtimes.GET("/:id", h.GetShowtime)
			showtimes.PATCH("/:id", h.UpdateShowtime)
			showtimes.DELETE("/:id", h.CancelShowtime)

			showtimes.GET("/:id/seats", h.SeatAvailability)
			showtimes.GET("/:id/holds", h.ListHolds)

			// Удержания требуют идентифицированного пользователя
			holds := showtimes.Group("/:id/holds", middleware.RequireUser())
			{
				holds.POST("", h.HoldSeats)
				holds.DELETE("", h.ReleaseSeats)
				holds.GET("/me", h.MyHolds)
			}
		}
	}

	s.router.GET("/ws/showtimes/:id", s.hub.ServeWS)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/health", s.healthCheck)
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealth := s.db.HealthCheck(ctx)

	redisStatus := database.StatusHealthy
	if err := s.store.Ping(ctx); err != nil {
		redisStatus = database.StatusUnhealthy
	}

	// Поиск опционален и не влияет на общий статус
	searchStatus := "disabled"
	if s.search != nil {
		searchStatus = database.StatusHealthy
		if err := s.search.HealthCheck(ctx); err != nil {
			slog.Warn("Elasticsearch health check failed", "error", err)
			searchStatus = database.StatusUnhealthy
		}
	}

	status := http.StatusOK
	overall := "ok"
	if dbHealth.Status != database.StatusHealthy || redisStatus != database.StatusHealthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"service":  "seatkeeper-api",
		"database": dbHealth,
		"redis":    redisStatus,
		"search":   searchStatus,
		"rooms":    s.hub.Rooms(),
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
