package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/config"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/filestore"
	"github.com/masapos/api/internal/handler"
	mw "github.com/masapos/api/internal/middleware"
	"github.com/masapos/api/internal/service"
	"github.com/masapos/api/internal/ws"
	"github.com/sirupsen/logrus"
)

// Deps are the long-lived components the routes are served from.
type Deps struct {
	Queries  *database.Queries
	Engine   *service.Engine
	Recorder *activity.Recorder
	Files    *filestore.Store
	Hub      *ws.Hub
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler.NewAuthHandler(cfg.JWTSecret).RegisterRoutes(r)

	// WebSocket routes (auth via query param)
	r.Get("/ws/floor", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(deps.Hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{tid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(deps.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/tables", handler.NewTableHandler(deps.Engine).RegisterRoutes)
		r.Route("/orders", handler.NewOrderHandler(deps.Engine).RegisterRoutes)
		r.Route("/items", handler.NewItemHandler(deps.Engine).RegisterRoutes)

		handler.NewCatalogHandler(deps.Queries).RegisterRoutes(r)

		reports := handler.NewReportsHandler(deps.Recorder)
		r.Route("/activity-logs", reports.RegisterActivityRoutes)
		r.Route("/sales-reports", reports.RegisterSalesRoutes)

		r.Route("/api", handler.NewConfigFileHandler(deps.Files).RegisterRoutes)
	})

	logrus.Info("router initialized")
	return r
}
