package middleware

import (
	"github.com/rs/cors"

	"github.com/heartmarshall/shop-catalog-backend/internal/config"
)

// CORS returns middleware that handles Cross-Origin Resource Sharing,
// answering preflight requests itself.
func CORS(cfg config.CORSConfig) Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins:   config.SplitList(cfg.AllowedOrigins),
		AllowedMethods:   config.SplitList(cfg.AllowedMethods),
		AllowedHeaders:   config.SplitList(cfg.AllowedHeaders),
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler
}
