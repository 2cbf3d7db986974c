package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spellingbee/internal/blob"
	"spellingbee/internal/config"
	"spellingbee/internal/db"
	httpServer "spellingbee/internal/http"
	"spellingbee/internal/http/handlers"
	"spellingbee/internal/http/middleware"
	"spellingbee/internal/identity"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"
	"spellingbee/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

// backends are the stores picked from STORE_DRIVER and DATABASE_URL.
type backends struct {
	docs    repository.DocumentStore
	creds   repository.CredentialStore
	plays   repository.PlayResultStore
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, rdb *redis.Client) *backends {
	b := &backends{
		creds: repository.NewMemCredentials(),
		plays: repository.NewMemPlayResults(),
	}

	if cfg.DatabaseURL != "" {
		pool := db.Connect(cfg.DatabaseURL)
		b.closers = append(b.closers, pool.Close)
		b.creds = repository.NewCredentialRepository(pool)
		b.plays = repository.NewPlayResultRepository(pool)
		if cfg.StoreDriver == config.DriverPostgres {
			b.docs = repository.NewPostgresStore(pool)
		}
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		b.docs = repository.NewMemStore()
		logger.Warn("using in-memory store, sessions are lost on restart")

	case config.DriverRedis:
		if rdb == nil {
			logger.Fatal("redis store selected but redis is unavailable", "addr", cfg.RedisAddr)
		}
		b.docs = repository.NewRedisStore(rdb, "spellingbee:")

	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite", "error", err)
		}
		b.closers = append(b.closers, func() { _ = sqlDB.Close() })

		store, err := repository.NewSQLiteStore(ctx, sqlDB)
		if err != nil {
			logger.Fatal("failed to migrate sqlite", "error", err)
		}
		b.docs = store
		if cfg.DatabaseURL == "" {
			b.creds = repository.NewSQLiteCredentials(sqlDB)
			b.plays = repository.NewSQLitePlayResults(sqlDB)
		}
	}

	logger.Info("store selected", "driver", cfg.StoreDriver)
	return b
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		client, err := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-memory limits and revocation", "error", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	b := openBackends(ctx, cfg, rdb)
	defer b.close()

	checks := map[string]handlers.Pinger{}
	var revoker identity.Revoker = identity.NewMemRevoker()
	if rdb != nil {
		middleware.UseRedis(rdb)
		revoker = identity.NewRedisRevoker(rdb)
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	fs, err := blob.NewFSStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		logger.Fatal("failed to prepare blob dir", "error", err)
	}

	coord := service.NewCoordinator(b.docs, fs, service.CoordinatorConfig{
		UploadTimeout:     cfg.UploadTimeout,
		UploadConcurrency: cfg.UploadConcurrency,
	})
	if err := coord.Load(ctx); err != nil {
		logger.Fatal("failed to load registry", "error", err)
	}
	coord.StartFlusher(ctx, cfg.FlushInterval)

	hub := ws.NewHub(coord, b.plays)
	hub.Run(ctx)

	r := gin.Default()

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Config:      cfg,
		Coordinator: coord,
		Identity:    identity.NewGateway(b.creds, revoker),
		Plays:       b.plays,
		Store:       b.docs,
		Hub:         hub,
		BlobRoot:    fs.Root(),
		Checks:      checks,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", cfg.AppVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if err := coord.Flush(shutdownCtx); err != nil {
		logger.Error("final flush incomplete", "error", err, "unflushed", coord.Dirty())
	}

	logger.Info("server exited")
}
