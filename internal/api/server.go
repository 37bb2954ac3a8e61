// Package api provides the read-side HTTP API for the activity catalog.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/search"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/validation"
)

// Server holds dependencies for the HTTP handlers.
type Server struct {
	store    store.Store
	suggest  *search.Index
	router   *chi.Mux
	api      huma.API
	logger   *logger.Logger
	validate *validation.Validator
}

// NewServer creates the HTTP server with all routes configured. The
// suggest index may be nil; the suggestions endpoint then reports the
// feature unavailable and health marks the component degraded.
func NewServer(st store.Store, suggest *search.Index, log *logger.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("Art Activity Catalog API", "1.0.0")
	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:    st,
		suggest:  suggest,
		router:   router,
		api:      api,
		logger:   log,
		validate: validation.New(),
	}

	s.registerHealthRoutes()
	s.registerActivityRoutes()
	s.registerRunRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
