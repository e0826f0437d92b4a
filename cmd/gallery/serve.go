package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"candy-gallery/internal/api"
	"candy-gallery/internal/gallery"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/publish"
	"candy-gallery/internal/solana"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gallery controller and HTTP API",
	Long: `Runs the refresh controller, the optional poller and publisher and the HTTP API.

The first cycle runs on start. Later cycles run when the eligibility toggle is
switched on, the wallet changes, POST /api/refresh is called or the poll interval elapses.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("http-addr", "", "HTTP listen address (default :8080)")
	f.Duration("poll-interval", 0, "Re-check interval, 0 disables polling")
	f.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.DefaultMetrics

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	var opts []gallery.ControllerOption
	if cfg.Publish.Bucket != "" {
		client, err := publish.NewClient(ctx, publish.Config{
			Bucket:          cfg.Publish.Bucket,
			Key:             cfg.Publish.Key,
			Endpoint:        cfg.Publish.Endpoint,
			Region:          cfg.Publish.Region,
			AccessKeyID:     cfg.Publish.AccessKeyID,
			SecretAccessKey: cfg.Publish.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		publisher, err := publish.NewPublisher(client, cfg.Publish.Bucket, cfg.Publish.Key, metrics, logger.Named("publish"))
		if err != nil {
			return err
		}
		opts = append(opts, gallery.WithSnapshotHook(publisher.Hook()))
		logger.Info("publishing enabled", zap.String("bucket", cfg.Publish.Bucket), zap.String("key", cfg.Publish.Key))
	}

	comp, err := buildGallery(cfg, stores, metrics, logger, opts...)
	if err != nil {
		return err
	}

	if cfg.Solana.WSEndpoint != "" {
		followSlots(ctx, comp.clock, cfg.Solana.WSEndpoint)
	}

	if cfg.Gallery.PollInterval > 0 {
		poller, err := gallery.NewPoller(cfg.Gallery.PollInterval, comp.controller, logger.Named("poller"))
		if err != nil {
			return err
		}
		poller.Start()
		defer func() {
			if err := poller.Stop(); err != nil {
				logger.Warn("stop poller", zap.Error(err))
			}
		}()
	}

	server := api.New(comp.controller, comp.notifier, logger.Named("api"), api.WithStores(api.Stores{
		Runs:          stores.runs,
		Evaluations:   stores.evaluations,
		Notifications: stores.notifications,
	}))

	logger.Info("starting gallery service",
		zap.String("network", cfg.Network()),
		zap.String("candy_machine", cfg.Gallery.CandyMachineID),
		zap.String("http_addr", cfg.HTTP.Addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return comp.controller.Run(gctx)
	})
	g.Go(func() error {
		return server.Listen(gctx, cfg.HTTP.Addr)
	})

	if err := shutdownError(g.Wait()); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// shutdownError drops cancellation, wrapped or not, which is the normal way out.
func shutdownError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("server error: %w", err)
}

// followSlots feeds websocket slot notifications into the chain clock. On failure the
// clock keeps using getSlot.
func followSlots(ctx context.Context, clock *solana.ChainClock, endpoint string) {
	log := logger.Named("ws")

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	ws, err := solana.NewWSClient(dialCtx, endpoint, nil, log)
	if err != nil {
		log.Warn("slot feed unavailable", zap.Error(err))
		return
	}
	slots, err := ws.SubscribeSlots(ctx)
	if err != nil {
		log.Warn("slot subscription failed", zap.Error(err))
		ws.Close()
		return
	}

	go func() {
		clock.Follow(ctx, slots)
		if err := ws.Close(); err != nil {
			log.Debug("close websocket", zap.Error(err))
		}
	}()
}
