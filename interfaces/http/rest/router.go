// Package rest wires the HTTP surface: the REST API, the health probes,
// the metrics endpoint and the websocket upgrade path.
package rest

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"collabgraph-backend/application/collab"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/infrastructure/config"
	"collabgraph-backend/interfaces/http/rest/handlers"
	"collabgraph-backend/interfaces/http/rest/middleware"
	ws "collabgraph-backend/interfaces/websocket"
	apperrors "collabgraph-backend/pkg/errors"
)

// Router builds the HTTP handler tree.
type Router struct {
	cfg         *config.Config
	db          *sql.DB
	users       ports.UserRepository
	diagrams    ports.DiagramRepository
	coordinator *collab.Coordinator
	wsServer    *ws.Server
	registry    *prometheus.Registry
	logger      *zap.Logger
}

// NewRouter creates a router over the application services.
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	users ports.UserRepository,
	diagrams ports.DiagramRepository,
	coordinator *collab.Coordinator,
	wsServer *ws.Server,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:         cfg,
		db:          db,
		users:       users,
		diagrams:    diagrams,
		coordinator: coordinator,
		wsServer:    wsServer,
		registry:    registry,
		logger:      logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.allowedOrigins(),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	errorHandler := apperrors.NewErrorHandler(rt.logger)
	healthHandler := handlers.NewHealthHandler(rt.db, rt.logger)
	userHandler := handlers.NewUserHandler(rt.users, errorHandler, rt.logger)
	diagramHandler := handlers.NewDiagramHandler(rt.diagrams, rt.users, rt.coordinator, errorHandler, rt.logger)

	router.Get("/health", healthHandler.Health)
	router.Get("/ready", healthHandler.Ready)
	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	// Websocket clients authenticate in-band after the upgrade.
	router.Get("/ws", rt.wsServer.ServeWS)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg.JWTSecret, rt.cfg.JWTIssuer, rt.logger))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Get("/", userHandler.ListUsers)
			r.Get("/{userID}", userHandler.GetUser)
			r.Put("/{userID}", userHandler.UpdateUser)
			r.Delete("/{userID}", userHandler.DeleteUser)
		})

		r.Route("/diagrams", func(r chi.Router) {
			r.Post("/", diagramHandler.CreateDiagram)
			r.Get("/", diagramHandler.ListDiagrams)
			r.Route("/{diagramID}", func(r chi.Router) {
				r.Get("/", diagramHandler.GetDiagram)
				r.Put("/", diagramHandler.UpdateDiagram)
				r.Delete("/", diagramHandler.DeleteDiagram)
				r.Put("/content", diagramHandler.UpdateContent)
				r.Get("/participants", diagramHandler.GetParticipants)
				r.Post("/collaborators", diagramHandler.AddCollaborator)
				r.Delete("/collaborators/{userID}", diagramHandler.RemoveCollaborator)
			})
		})
	})

	return router
}

func (rt *Router) allowedOrigins() []string {
	origins := strings.Split(rt.cfg.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
