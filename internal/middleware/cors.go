package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"camfleet-backend/internal/config"
)

// NewCORS builds the CORS wrapper from the configured allowed origins.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler
}
