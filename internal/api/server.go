// Package api exposes the console over HTTP: snapshot pull, websocket
// push, function invocation, and collection/history persistence.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/funcdeck-hq/funcdeck/internal/config"
	"github.com/funcdeck-hq/funcdeck/internal/distribute"
	"github.com/funcdeck-hq/funcdeck/internal/runner"
	"github.com/funcdeck-hq/funcdeck/internal/store"
)

// Invoker runs functions on the deployment. Satisfied by *runner.Client.
type Invoker interface {
	Invoke(ctx context.Context, req runner.InvokeRequest) (*runner.InvokeResult, error)
}

// Server is the console's HTTP server.
type Server struct {
	cfg         *config.Config
	hub         *distribute.Hub
	invoker     Invoker
	collections *store.Collections
	history     *store.History
	router      *chi.Mux
}

// NewServer wires the HTTP surface to the hub, the deployment client, and
// the persistence repositories.
func NewServer(cfg *config.Config, hub *distribute.Hub, invoker Invoker, st store.Store) *Server {
	s := &Server{
		cfg:         cfg,
		hub:         hub,
		invoker:     invoker,
		collections: store.NewCollections(st),
		history:     store.NewHistory(st),
		router:      chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	// no Timeout middleware: the websocket route holds its connection
	// open for the life of the subscription
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/schema", s.getSchema)
		r.Get("/ws", s.handleWS)
		r.Post("/invoke", s.invoke)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", s.listCollections)
			r.Post("/", s.createCollection)
			r.Get("/{collectionID}", s.getCollection)
			r.Put("/{collectionID}", s.updateCollection)
			r.Delete("/{collectionID}", s.deleteCollection)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.listHistory)
			r.Delete("/", s.clearHistory)
		})
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is canceled, then drains connections.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
