package internal

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "agentlinker/api/v1"
	"agentlinker/internal/agents"
	"agentlinker/internal/analytics"
	"agentlinker/internal/config"
	"agentlinker/internal/http"
	"agentlinker/internal/http/middleware"
	"agentlinker/internal/metrics"
	"agentlinker/internal/notify"
)

// publicCORSConfig is shared by every endpoint called from a profile page or
// the dashboard front end.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// agentDirectoryTTL bounds how long a positive agent lookup is reused by /api/track.
const agentDirectoryTTL = 5 * time.Minute

// Notifications is the outbound email pipeline shared by the routes that
// dispatch messages, the health check and application shutdown.
type Notifications struct {
	Breaker  *notify.BreakerSender
	Notifier *notify.Notifier
}

// NewNotifications builds the breaker-guarded notifier from cfg.
func NewNotifications(cfg *config.Config, logger *slog.Logger) *Notifications {
	breaker := notify.NewBreakerSender(
		notify.LogSender{Logger: logger},
		logger,
		uint32(cfg.NotifyBreakerMaxFailures),
		0,
	)
	return &Notifications{
		Breaker:  breaker,
		Notifier: notify.NewNotifier(breaker, logger, cfg.NotifyFrom, cfg.GetNotifyTimeout()),
	}
}

// MountAppRoutes mounts all application routes with a private notification pipeline.
func MountAppRoutes(srv *cartridge.Server) {
	NewNotifications(config.GetConfig(), srv.GetLogger()).MountAppRoutes(srv)
}

// MountAppRoutes mounts all application routes using cartridge's route API.
func (n *Notifications) MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	srv.App().Use(middleware.RequestMetrics())

	// Rate limiting would interfere with tests and local development.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min covers a busy profile page while capping scripted abuse.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// ============================================
	// DEPENDENCIES
	// ============================================

	directory := agents.NewDirectory(db, logger, agentDirectoryTTL)
	aggregator := analytics.NewAggregator(analytics.DBStore{DB: db}, logger, nil, cfg.GetAnalyticsWorkers())

	breaker, notifier := n.Breaker, n.Notifier

	// ============================================
	// ROUTE CONFIGURATIONS
	// ============================================

	// Beacons come from browsers on third-party pages.
	trackConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   append([]fiber.Handler{publicRateLimiter}, v1.BeaconGuards()...),
	}

	publicConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CORSConfig:       publicCORSConfig,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
	}

	// Bearer tokens are never sent implicitly, so API clients outside a
	// browser are allowed.
	authConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{authRateLimiter},
	}

	agentConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{middleware.AgentAuth(cfg.JWTSecret, logger)},
	}

	// Called by the payments provider and scrapers, never by a browser.
	machineConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === ROOT ROUTES ===
	srv.Get("/_health", http.HealthIndexAction(breaker), machineConfig)
	srv.Head("/_health", http.HealthIndexAction(breaker), machineConfig)

	metricsHandler := adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv.Get("/metrics", func(ctx *cartridge.Context) error {
		return metricsHandler(ctx.Ctx)
	}, machineConfig)

	// === AUTHENTICATION ROUTES ===
	srv.Post("/api/auth/signup", http.SignupAction, authConfig)
	srv.Post("/api/auth/login", http.LoginAction, authConfig)
	srv.Options("/api/auth/signup", preflight, publicConfig)
	srv.Options("/api/auth/login", preflight, publicConfig)
	srv.Get("/api/auth/me", http.MeAction, agentConfig)

	// === PUBLIC PROFILE ROUTES ===
	// Registered before /:username so "bookings" is never read as a username.
	srv.Get("/api/public/bookings/:code", http.PublicBookingStatusAction, publicConfig)
	srv.Get("/api/public/:username", http.PublicProfileAction, publicConfig)
	srv.Post("/api/public/:username/leads", http.PublicLeadCreateAction(notifier), publicConfig)
	srv.Post("/api/public/:username/bookings", http.PublicBookingCreateAction(notifier), publicConfig)
	srv.Options("/api/public/:username/leads", preflight, publicConfig)
	srv.Options("/api/public/:username/bookings", preflight, publicConfig)

	srv.Post("/api/track", v1.TrackEventHandler(directory), trackConfig)
	srv.Options("/api/track", preflight, publicConfig)

	// === AGENT ROUTES ===
	srv.Get("/api/profile", http.ProfileShowAction, agentConfig)
	srv.Post("/api/profile", http.ProfileUpdateAction, agentConfig)

	srv.Get("/api/listings", http.ListingsIndexAction, agentConfig)
	srv.Post("/api/listings", http.ListingCreateAction, agentConfig)
	srv.Get("/api/listings/:id", http.ListingShowAction, agentConfig)
	srv.Post("/api/listings/:id", http.ListingUpdateAction, agentConfig)
	srv.Delete("/api/listings/:id", http.ListingDeleteAction, agentConfig)

	srv.Get("/api/leads", http.LeadsIndexAction, agentConfig)
	srv.Post("/api/leads/:id", http.LeadUpdateAction, agentConfig)
	srv.Delete("/api/leads/:id", http.LeadDeleteAction, agentConfig)

	srv.Get("/api/bookings", http.BookingsIndexAction, agentConfig)
	srv.Post("/api/bookings/:id", http.BookingUpdateAction, agentConfig)

	srv.Get("/api/analytics", http.AnalyticsReportAction(aggregator), agentConfig)
	srv.Post("/api/analytics", http.AnalyticsEventCreateAction, agentConfig)

	// === BILLING ROUTES ===
	srv.Get("/api/billing/plans", http.BillingPlansAction, publicConfig)
	srv.Get("/api/billing/usage", http.BillingUsageAction, agentConfig)
	srv.Post("/api/billing/webhook", http.BillingWebhookAction, machineConfig)
}
