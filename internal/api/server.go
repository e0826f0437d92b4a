// Package api exposes the gallery controller over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/solana"
	"candy-gallery/internal/storage"
)

// Gallery is the controller surface the API drives.
type Gallery interface {
	Snapshot() domain.Snapshot
	Busy() bool
	Trigger()
	SetCheckEligibility(v bool)
	SetModalOpen(open bool)
	ConnectWallet(w solana.PublicKey)
	DisconnectWallet()
}

// Notifications lists and dismisses displayed notifications.
type Notifications interface {
	Active() []domain.Notification
	Dismiss(key string) bool
}

// Stores are the read sides of the refresh history.
type Stores struct {
	Runs          storage.RefreshRunStore
	Evaluations   storage.GuardEvaluationStore
	Notifications storage.NotificationStore
}

// Server serves the gallery API.
type Server struct {
	app      *fiber.App
	gallery  Gallery
	notices  Notifications
	stores   Stores
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics. Defaults to the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithStores enables the history endpoints.
func WithStores(st Stores) Option {
	return func(s *Server) { s.stores = st }
}

// New creates a Server with its routes registered.
func New(gallery Gallery, notices Notifications, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		gallery:  gallery,
		notices:  notices,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "candy-gallery",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.app.Get("/gallery", s.handlePage)

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/snapshot", s.handleSnapshot)
	api.Get("/gallery", s.handleView)
	api.Post("/refresh", s.handleRefresh)
	api.Post("/eligibility", s.handleEligibility)
	api.Post("/modal", s.handleModal)
	api.Post("/wallet", s.handleConnectWallet)
	api.Delete("/wallet", s.handleDisconnectWallet)
	api.Get("/notifications", s.handleNotifications)
	api.Delete("/notifications/:key", s.handleDismiss)
	api.Get("/notifications/history", s.handleNotificationHistory)
	api.Get("/runs", s.handleRuns)
	api.Get("/runs/:id", s.handleRun)
	api.Get("/runs/:id/guards", s.handleRunGuards)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is done, then shuts down.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
