package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"headcanonhub/internal/admin"
	"headcanonhub/internal/auth"
	"headcanonhub/internal/generator"
	"headcanonhub/internal/headcanon"
	"headcanonhub/internal/live"
	"headcanonhub/internal/logging"
	"headcanonhub/internal/metrics"
	"headcanonhub/internal/pages"
	"headcanonhub/internal/ratelimit"
	"headcanonhub/internal/visitor"
	"headcanonhub/pkg/database"
	"headcanonhub/pkg/utils"
)

const geoWorkers = 2

// remoteIPHeaders are read, in order, only when the peer is a trusted proxy.
var remoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

type server struct {
	cfg     *utils.Config
	db      *sql.DB
	engine  *headcanon.Engine
	hub     *live.Hub
	limiter *ratelimit.KeyedRateLimiter
	tracker *visitor.Tracker
}

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config failed")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db := database.MustOpen(database.Config{Path: cfg.Database.Path})
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	var corpus *headcanon.Corpus
	if cfg.Corpus.Path != "" {
		corpus, err = headcanon.LoadCorpus(cfg.Corpus.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Corpus.Path).Msg("load corpus failed")
		}
		logging.Info().Str("path", cfg.Corpus.Path).Msg("loaded template corpus")
	}

	var geo visitor.Locator
	if cfg.Geo.Enabled {
		geo = visitor.NewGeoClient(cfg.Geo.BaseURL, cfg.Geo.Timeout)
	}

	hub := live.NewHub()
	s := &server{
		cfg:     cfg,
		db:      db,
		engine:  headcanon.NewEngine(corpus),
		hub:     hub,
		limiter: ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		tracker: visitor.NewTracker(visitor.NewRepo(db), geo, hub),
	}

	router, err := s.routes()
	if err != nil {
		logging.Fatal().Err(err).Msg("build routes failed")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	s.tracker.Start(workerCtx, geoWorkers)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info().Str("addr", cfg.Server.Addr).Str("site_url", cfg.SiteURL()).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logging.Error().Err(err).Msg("server error")
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown error")
	}
	s.limiter.Stop()
	stopWorkers()
	s.tracker.Wait()

	wg.Wait()
	logging.Info().Msg("server stopped")
}

func (s *server) routes() (*gin.Engine, error) {
	router := gin.New()
	router.RemoteIPHeaders = remoteIPHeaders
	if err := router.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	router.Use(
		logging.GinLogger(),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			logging.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}),
		metrics.Middleware(),
		ratelimit.Middleware(s.limiter, s.cfg.RateLimit.Window),
		s.tracker.Middleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", s.ready)
	router.GET("/metrics", metrics.Handler())

	generator.NewHandler(s.engine).RegisterRoutes(router.Group("/api"))

	tokens := auth.TokenService{
		Secret:   []byte(s.cfg.Auth.JWTSecret),
		Issuer:   s.cfg.Auth.JWTIssuer,
		Duration: s.cfg.Auth.JWTDuration,
	}
	authHandler := auth.NewHandler(auth.NewRepo(s.db), tokens)
	adminGroup := router.Group("/admin")
	authHandler.RegisterRoutes(adminGroup)

	protected := adminGroup.Group("")
	protected.Use(authHandler.Required())
	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{"id": claims.AdminID, "username": claims.Username})
	})
	admin.NewHandler(visitor.NewRepo(s.db)).RegisterRoutes(protected)

	adminGroup.GET("/live", authHandler.RequiredWithQuery(), live.WSHandler(s.hub))

	site, err := pages.NewHandler(s.cfg.SiteURL())
	if err != nil {
		return nil, err
	}
	if err := site.RegisterRoutes(router); err != nil {
		return nil, err
	}
	return router, nil
}

func (s *server) ready(c *gin.Context) {
	stats := s.hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not_ready",
			"db_error":     err.Error(),
			"live_clients": stats.Clients,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"db":           "ok",
		"live_clients": stats.Clients,
	})
}
