package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"campus-wayfinding/internal/config"
	"campus-wayfinding/internal/directory"
	"campus-wayfinding/internal/ws"
)

type Server struct {
	Config           *config.Config
	WebsocketManager *ws.Manager
	Directory        *directory.Directory
	logger           *slog.Logger
}

func NewServer(config *config.Config, wsManager *ws.Manager, dir *directory.Directory, logger *slog.Logger) *Server {
	return &Server{
		Config:           config,
		WebsocketManager: wsManager,
		Directory:        dir,
		logger:           logger,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate;")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /api/health", s.apiHealthHandler())
	mux.Handle("GET /api/companies", s.companiesHandler())
	mux.Handle("GET /api/buildings", s.buildingsHandler())
	mux.Handle("GET /api/buildings.geojson", s.buildingMarkersHandler())
	mux.Handle("GET /navigation", s.wsHandler())
	if s.Config.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.Config.StaticDir)))
	}
	return corsPolicy().Handler(mux)
}

// corsPolicy lets kiosk pages served from another origin call the read-only API.
func corsPolicy() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
