package http

import (
	"path/filepath"
	"time"

	"spellingbee/internal/config"
	"spellingbee/internal/http/handlers"
	"spellingbee/internal/http/middleware"
	"spellingbee/internal/identity"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"
	"spellingbee/internal/ws"

	"github.com/gin-gonic/gin"
)

// Deps is everything the routes need, built in main.
type Deps struct {
	Config      *config.Config
	Coordinator *service.Coordinator
	Identity    *identity.Gateway
	Plays       repository.PlayResultStore
	Store       handlers.Pinger
	Hub         *ws.Hub
	// BlobRoot is served under /recordings when the filesystem store is used.
	BlobRoot string
	// Checks are extra readiness probes, e.g. redis.
	Checks map[string]handlers.Pinger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	h := handlers.NewHandler(d.Coordinator, d.Identity, d.Plays)
	healthHandler := handlers.NewHealthHandler(d.Store, cfg.AppVersion, d.Coordinator.Dirty)
	for name, p := range d.Checks {
		healthHandler.AddCheck(name, p)
	}

	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, orMinute(cfg.APIRateWindow)))
	registerAPIRoutes(v1, h, d.Identity.Revoker(), cfg)

	// Recorded audio written by the filesystem blob store
	if d.BlobRoot != "" {
		r.Static("/recordings", filepath.Join(d.BlobRoot, "recordings"))
	}

	r.GET("/ws/play", ws.HandlePlay(d.Hub, d.Identity.Revoker()))
	r.GET("/ws/events", ws.HandleEvents(d.Hub, d.Identity.Revoker()))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, revoked middleware.RevocationChecker, cfg *config.Config) {
	auth := middleware.JWT(revoked)
	authRL := middleware.RateLimit(cfg.AuthRateLimit, orMinute(cfg.AuthRateWindow))

	// Auth
	api.POST("/auth/register", authRL, h.Register)
	api.POST("/auth/login", authRL, h.Login)
	api.POST("/auth/signout", auth, h.SignOut)

	// Users
	api.GET("/me", auth, h.Me)
	api.GET("/me/plays", auth, h.MyPlays)
	api.GET("/users", auth, h.Users)

	// Sessions
	submitRL := middleware.SubmitRateLimit(cfg.SubmitRateLimit, orMinute(cfg.SubmitRateWindow))
	sessions := api.Group("/sessions")
	sessions.Use(auth)
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/words/mine", h.MyWords)
		sessions.POST("/:id/words", submitRL, h.SubmitWords)
		sessions.POST("/:id/start", h.StartSession)
		sessions.GET("/:id/audio", h.Audio)
	}
}

func orMinute(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
