// Package gallery loads the configured candy machine, refreshes mint eligibility
// and owned tokens for the connected wallet, and renders the gallery.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/notify"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/solana"
)

var (
	// ErrNoCandyMachine is returned when no candy machine address is configured.
	ErrNoCandyMachine = errors.New("no candy machine configured")
	// ErrCandyMachineNotFound is returned when the address is invalid or the account cannot be loaded.
	ErrCandyMachineNotFound = errors.New("candy machine not found")
	// ErrWrongAccountVersion is returned for candy machines older than account version V2.
	ErrWrongAccountVersion = errors.New("wrong candy machine account version")
	// ErrNoCandyGuard is returned when the mint authority is not a loadable candy guard.
	ErrNoCandyGuard = errors.New("no candy guard found")
)

// LoadResult is a loaded candy machine and its candy guard.
type LoadResult struct {
	Machine *candymachine.CandyMachine
	Guard   *candymachine.CandyGuard
}

// Loader fetches the configured candy machine and its guard.
// It holds the current pair; every load replaces it.
type Loader struct {
	rpc      solana.RPCClient
	address  string
	notifier notify.Shower
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	machine  *candymachine.CandyMachine
	guard    *candymachine.CandyGuard
	firstRun atomic.Bool
}

// NewLoader creates a Loader for the candy machine at address. An empty
// address is accepted and reported on every load.
func NewLoader(rpc solana.RPCClient, address string, notifier notify.Shower, metrics *observability.Metrics, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		rpc:      rpc,
		address:  address,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
	l.firstRun.Store(true)
	return l
}

// Load runs the full load sequence when checkEligibility is true and is a
// no-op otherwise. The previous pair is discarded on every run.
func (l *Loader) Load(ctx context.Context, checkEligibility bool) (*LoadResult, error) {
	if !checkEligibility {
		return nil, nil
	}
	defer l.firstRun.CompareAndSwap(true, false)

	res, outcome, err := l.load(ctx)
	if l.metrics != nil {
		l.metrics.RecordLoad(outcome)
	}
	return res, err
}

func (l *Loader) load(ctx context.Context) (*LoadResult, string, error) {
	if l.address == "" {
		l.set(nil, nil)
		l.logger.Error("no candy machine configured")
		l.show(ctx, notify.KeyNoCandyMachine)
		return nil, "no_candy_machine", ErrNoCandyMachine
	}

	address, err := solana.ParsePublicKey(l.address)
	if err != nil {
		l.set(nil, nil)
		l.logger.Error("invalid candy machine address", zap.String("address", l.address), zap.Error(err))
		l.show(ctx, notify.KeyCandyMachineInvalid)
		return nil, "not_found", fmt.Errorf("%w: %v", ErrCandyMachineNotFound, err)
	}

	cm, err := candymachine.FetchCandyMachine(ctx, l.rpc, address)
	if err != nil {
		l.set(nil, nil)
		l.logger.Error("fetch candy machine", zap.String("address", l.address), zap.Error(err))
		l.show(ctx, notify.KeyCandyMachineInvalid)
		return nil, "not_found", fmt.Errorf("%w: %v", ErrCandyMachineNotFound, err)
	}

	if cm.Version != candymachine.AccountVersionV2 {
		l.set(nil, nil)
		l.logger.Error("unsupported candy machine account version",
			zap.String("address", l.address),
			zap.Stringer("version", cm.Version),
		)
		l.show(ctx, notify.KeyWrongAccountVersion)
		return nil, "wrong_version", fmt.Errorf("%w: %s", ErrWrongAccountVersion, cm.Version)
	}
	l.set(cm, nil)

	cg, err := candymachine.SafeFetchCandyGuard(ctx, l.rpc, cm.MintAuthority)
	if err != nil || cg == nil {
		if err == nil {
			err = candymachine.ErrAccountNotFound
		}
		l.logger.Error("fetch candy guard", zap.Stringer("mint_authority", cm.MintAuthority), zap.Error(err))
		l.show(ctx, notify.KeyNoCandyGuard)
		return &LoadResult{Machine: cm}, "no_guard", fmt.Errorf("%w: %v", ErrNoCandyGuard, err)
	}
	l.set(cm, cg)

	l.logger.Info("candy machine loaded",
		zap.String("address", l.address),
		zap.Stringer("guard", cg.Address),
		zap.Uint64("items_redeemed", cm.ItemsRedeemed),
		zap.Uint64("items_available", cm.Data.ItemsAvailable),
		zap.Int("groups", len(cg.Groups)),
	)
	return &LoadResult{Machine: cm, Guard: cg}, "ok", nil
}

func (l *Loader) show(ctx context.Context, key string) {
	if l.notifier != nil {
		l.notifier.ShowKey(ctx, key)
	}
}

func (l *Loader) set(cm *candymachine.CandyMachine, cg *candymachine.CandyGuard) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.machine = cm
	l.guard = cg
}

// Current returns the current machine and guard. Either may be nil.
func (l *Loader) Current() (*candymachine.CandyMachine, *candymachine.CandyGuard) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.machine, l.guard
}

// FirstRun reports whether no load has been attempted yet.
func (l *Loader) FirstRun() bool {
	return l.firstRun.Load()
}
