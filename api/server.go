package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "nmapcluster/docs"
	"nmapcluster/logging"
)

const shutdownTimeout = 5 * time.Second

// Options configures the router.
type Options struct {
	// APIKey enables bearer authentication on /api/v1 when set.
	APIKey string
	// RateLimit is the number of requests per minute a client may make to
	// /api/v1. Zero disables limiting, as does a nil Redis.
	RateLimit   int
	Redis       *redis.Client
	RedisPrefix string
	Logger      *slog.Logger
}

// NewRouter builds the coordinator's HTTP handler.
func NewRouter(srv *Server, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	)

	router.GET("/health", healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	if opts.RateLimit > 0 && opts.Redis != nil {
		v1.Use(RateLimitMiddleware(opts.Redis, opts.RedisPrefix, int64(opts.RateLimit), time.Minute, logger))
	}
	if opts.APIKey != "" {
		v1.Use(AuthMiddleware(opts.APIKey, logger))
	} else {
		logger.Warn("API_KEY is empty, the status API is unauthenticated")
	}
	srv.RegisterRoutes(v1)

	return router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger().Info("status API listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status API shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
