// Package server exposes the journal and analytics services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trade-journal/internal/analytics"
	"trade-journal/internal/importer"
	"trade-journal/internal/journal"
	"trade-journal/internal/pricestore"
	"trade-journal/internal/risk"
	"trade-journal/internal/schema"
	"trade-journal/internal/tradestore"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Options configure the shared router.
type Options struct {
	Service  string
	Mode     string
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// NewRouter builds a gin engine with the common middleware and the health
// and metrics endpoints.
func NewRouter(opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(otelgin.Middleware(opts.Service))
	r.Use(NewMetrics(opts.Registry, opts.Service).Middleware())
	r.Use(Logger(opts.Logger.Named("http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.Service})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{Registry: opts.Registry})))
	return r
}

func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return pricestore.ValidateTicker(pricestore.NormalizeTicker(fl.Field().String())) == nil
	})
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var missing *schema.MissingColumnsError
	var verrs validator.ValidationErrors
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tradestore.ErrNotFound), errors.Is(err, pricestore.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, tradestore.ErrDuplicateTag):
		status = http.StatusConflict
	case errors.Is(err, journal.ErrInvalidInput),
		errors.Is(err, analytics.ErrInvalidInput),
		errors.Is(err, importer.ErrUnsupportedFormat),
		errors.Is(err, risk.ErrZeroRisk),
		errors.Is(err, risk.ErrInvalidPrice),
		errors.As(err, &missing),
		errors.As(err, &verrs):
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting web server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down web server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}
