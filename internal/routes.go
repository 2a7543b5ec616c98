package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracker/internal/config"
	"tracker/internal/http"
	"tracker/internal/http/middleware"
)

// publicCORSConfig is the permissive CORS setup of the view recording endpoint.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referer, User-Agent",
}

// serverConfig is the cartridge server setup of a JSON only API. There are no
// templates or assets, and callers are scripts and backends that send no
// Sec-Fetch-Site header.
func serverConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.ReadTimeout = 10 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.EnableTemplates = false
	cfg.EnableStaticAssets = false
	cfg.EnableSecFetchSite = false
	return cfg
}

// MountRoutes returns the route mount function of the tracker API.
func MountRoutes(cfg *config.Config, h *http.Handlers) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		// 120 views per minute per IP, skipped in development and test
		publicRateLimiter := cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(120),
			cartridgemiddleware.WithDuration(time.Minute),
			cartridgemiddleware.WithEnv(cfg),
		)

		publicAPIConfig := &cartridge.RouteConfig{
			EnableCORS:       true,
			CORSConfig:       publicCORSConfig,
			WriteConcurrency: true,
			CustomMiddleware: []fiber.Handler{publicRateLimiter},
		}

		protectedConfig := &cartridge.RouteConfig{
			CustomMiddleware: []fiber.Handler{middleware.APIKeyAuth(cfg.APIKey, h.Logger)},
		}

		protectedWriteConfig := &cartridge.RouteConfig{
			WriteConcurrency: true,
			CustomMiddleware: protectedConfig.CustomMiddleware,
		}

		metricsHandler := adaptor.HTTPHandler(promhttp.Handler())

		srv.Get("/health", h.HealthIndexAction)
		srv.Head("/health", h.HealthIndexAction)
		srv.Get("/metrics", func(ctx *cartridge.Context) error {
			return metricsHandler(ctx.Ctx)
		})

		srv.Post("/api/v1/views", h.RecordViewAction, publicAPIConfig)
		srv.Options("/api/v1/views", func(ctx *cartridge.Context) error {
			return ctx.SendStatus(fiber.StatusNoContent)
		}, publicAPIConfig)

		srv.Post("/api/v1/trackables/:type/:id/views/:viewID", h.AttachViewAction, protectedWriteConfig)

		srv.Get("/api/v1/stats/summary", h.StatsSummaryAction, protectedConfig)
		srv.Get("/api/v1/stats/between", h.StatsBetweenAction, protectedConfig)
		srv.Get("/api/v1/stats/relative/:unit", h.StatsRelativeAction, protectedConfig)
		srv.Get("/api/v1/stats/day", h.StatsDayAction, protectedConfig)
		srv.Get("/api/v1/stats/series/:unit", h.StatsSeriesAction, protectedConfig)

		srv.Delete("/api/v1/cache", h.CachePurgeAction, protectedConfig)
	}
}
