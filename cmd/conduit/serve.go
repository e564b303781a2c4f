package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/httpapi"
	"github.com/conduit-run/conduit/pkg/log"
)

// serveHTTP starts the gin-based HTTP driver and blocks until ctx is
// cancelled (SIGINT/SIGTERM), then drains in-flight requests with a
// bounded shutdown grace period.
func serveHTTP(ctx context.Context, addr string) error {
	logger := log.Default()
	router := httpapi.NewRouter(ginLogMiddleware(logger))

	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return conduiterr.Wrap(conduiterr.KindResource, err, "serve http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return conduiterr.Wrap(conduiterr.KindResource, err, "shutdown http server")
	}
	logger.Info("shut down cleanly")
	return nil
}

// ginLogMiddleware bridges gin's request lifecycle to the slog-based
// ambient logger instead of gin's own default text logger.
func ginLogMiddleware(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
