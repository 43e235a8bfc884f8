package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/create", h.CreateVideo)
	mux.HandleFunc("POST /api/remix", h.RemixVideo)
	mux.HandleFunc("GET /api/status/{id}", h.GetStatus)

	mux.HandleFunc("GET /api/gallery", h.Gallery)
	mux.HandleFunc("GET /api/videos", h.ListVideos)
	mux.HandleFunc("GET /api/download/{id}", h.DownloadVideo)
	mux.HandleFunc("DELETE /api/delete/{id}", h.DeleteRemote)
	mux.HandleFunc("DELETE /api/delete-local/{id}", h.DeleteLocal)

	mux.HandleFunc("GET /videos/{path...}", h.ServeArchive)

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
