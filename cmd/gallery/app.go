package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"candy-gallery/internal/config"
	"candy-gallery/internal/eligibility"
	"candy-gallery/internal/gallery"
	"candy-gallery/internal/metadata"
	"candy-gallery/internal/notify"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/solana"
	"candy-gallery/internal/storage"
	chstore "candy-gallery/internal/storage/clickhouse"
	"candy-gallery/internal/storage/memory"
	"candy-gallery/internal/storage/migrations"
	pgstore "candy-gallery/internal/storage/postgres"
)

// allStores holds the refresh history stores.
type allStores struct {
	runs          storage.RefreshRunStore
	evaluations   storage.GuardEvaluationStore
	notifications storage.NotificationStore
}

func memoryStores() *allStores {
	return &allStores{
		runs:          memory.NewRefreshRunStore(),
		evaluations:   memory.NewGuardEvaluationStore(),
		notifications: memory.NewNotificationStore(),
	}
}

// createStores connects PostgreSQL (runs, notifications) and ClickHouse (guard evaluations)
// and applies migrations, or returns memory stores.
func createStores(ctx context.Context, c *config.Config) (*allStores, func(), error) {
	if c.Storage.UseMemory {
		return memoryStores(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, c.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, c.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		runs:          pgstore.NewRefreshRunStore(pool),
		notifications: pgstore.NewNotificationStore(pool),
		evaluations:   chstore.NewGuardEvaluationStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// components is the wired gallery.
type components struct {
	rpc        *solana.HTTPClient
	clock      *solana.ChainClock
	notifier   *notify.Notifier
	controller *gallery.Controller
}

// buildGallery wires the chain client, evaluator, metadata resolver and controller.
func buildGallery(c *config.Config, stores *allStores, metrics *observability.Metrics, log *zap.Logger, opts ...gallery.ControllerOption) (*components, error) {
	rpc := solana.NewHTTPClient(c.RPCEndpoint(),
		solana.WithTimeout(c.Solana.Timeout),
		solana.WithMaxRetries(c.Solana.MaxRetries),
		solana.WithObserver(metrics.RecordRPC),
	)
	clock := solana.NewChainClock(rpc, log.Named("clock"))

	notifier := notify.New(log.Named("notify"),
		notify.WithStore(stores.notifications),
		notify.WithMetrics(metrics),
	)

	lister := eligibility.NewOwnedTokenLister(rpc, log.Named("tokens"),
		eligibility.WithCollectionFilter(c.Gallery.FilterCollection))

	var checkerOpts []eligibility.CheckerOption
	if c.Gallery.AllowListFile != "" {
		keys, err := config.LoadAllowList(c.Gallery.AllowListFile)
		if err != nil {
			return nil, err
		}
		checkerOpts = append(checkerOpts, eligibility.WithAllowList(eligibility.NewAllowList(keys)))
		log.Info("allow list loaded", zap.Int("addresses", len(keys)))
	}
	checker := eligibility.NewChecker(rpc, lister, log.Named("eligibility"), checkerOpts...)

	fetcher := metadata.NewFetcher(
		metadata.WithTimeout(c.Metadata.Timeout),
		metadata.WithGateway(c.Metadata.IPFSGateway),
	)
	resolver := metadata.NewResolver(fetcher, c.Metadata.Concurrency, metrics, log.Named("metadata"))

	wallet, err := c.WalletKey()
	if err != nil {
		return nil, err
	}

	loader := gallery.NewLoader(rpc, c.Gallery.CandyMachineID, notifier, metrics, log.Named("loader"))
	refresher := gallery.NewRefresher(checker, resolver, clock, metrics, log.Named("refresher"))
	recorder := gallery.NewRecorder(stores.runs, stores.evaluations, metrics, log.Named("recorder"))

	base := []gallery.ControllerOption{
		gallery.WithRecorder(recorder),
		gallery.WithMetrics(metrics),
		gallery.WithWallet(wallet),
	}
	controller := gallery.NewController(loader, refresher, log.Named("controller"), append(base, opts...)...)

	return &components{
		rpc:        rpc,
		clock:      clock,
		notifier:   notifier,
		controller: controller,
	}, nil
}
