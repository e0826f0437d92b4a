package gallery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/solana"
)

// initialGuardLabel labels the placeholder evaluation shown before the first refresh.
const initialGuardLabel = "startDefault"

// SnapshotHook is called with the snapshot after every completed refresh.
type SnapshotHook func(ctx context.Context, s domain.Snapshot)

// Controller serializes load and refresh cycles on one worker.
// Triggers received while a cycle is pending coalesce into that cycle.
type Controller struct {
	loader    *Loader
	refresher *Refresher
	recorder  *Recorder
	hooks     []SnapshotHook
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	trigger chan struct{}
	busy    atomic.Bool

	mu     sync.RWMutex
	wallet solana.PublicKey
	snap   domain.Snapshot
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRecorder records every finished refresh.
func WithRecorder(r *Recorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

// WithSnapshotHook adds a hook run after each completed refresh.
func WithSnapshotHook(h SnapshotHook) ControllerOption {
	return func(c *Controller) { c.hooks = append(c.hooks, h) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithCheckEligibility sets the initial toggle. Defaults to true.
func WithCheckEligibility(v bool) ControllerOption {
	return func(c *Controller) { c.snap.CheckEligibility = v }
}

// WithWallet sets the initially connected wallet.
func WithWallet(w solana.PublicKey) ControllerOption {
	return func(c *Controller) {
		c.wallet = w
		if !w.IsZero() {
			c.snap.Wallet = w.String()
		}
	}
}

// NewController creates a Controller.
func NewController(loader *Loader, refresher *Refresher, logger *zap.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		loader:    loader,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
		trigger:   make(chan struct{}, 1),
		snap: domain.Snapshot{
			CheckEligibility: true,
			FirstRun:         true,
			Guards:           []domain.GuardEvaluation{{Label: initialGuardLabel}},
			Gallery:          []domain.GalleryEntry{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes triggers until ctx is cancelled. One cycle runs on start.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("controller started")
	c.Trigger()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopped")
			return nil
		case <-c.trigger:
			c.RunOnce(ctx)
		}
	}
}

// Trigger requests a cycle. If one is already pending the request is merged into it.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
		if c.metrics != nil {
			c.metrics.TriggersCoalesced.Inc()
		}
	}
}

// Busy reports whether a cycle is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// SetCheckEligibility sets the eligibility toggle. Turning it on requests a cycle.
func (c *Controller) SetCheckEligibility(v bool) {
	c.mu.Lock()
	was := c.snap.CheckEligibility
	c.snap.CheckEligibility = v
	c.mu.Unlock()

	if v && !was {
		c.Trigger()
	}
}

// SetModalOpen sets the blocking modal gate. Refreshes are skipped while it is open.
func (c *Controller) SetModalOpen(open bool) {
	c.mu.Lock()
	c.snap.ModalOpen = open
	c.mu.Unlock()
}

// ConnectWallet sets the connected wallet. A change requests a cycle.
func (c *Controller) ConnectWallet(w solana.PublicKey) {
	c.mu.Lock()
	changed := c.wallet != w
	c.wallet = w
	c.snap.Wallet = ""
	if !w.IsZero() {
		c.snap.Wallet = w.String()
	}
	c.mu.Unlock()

	if changed {
		c.Trigger()
	}
}

// DisconnectWallet clears the connected wallet.
func (c *Controller) DisconnectWallet() {
	c.ConnectWallet(solana.PublicKey{})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// cycleProgress publishes a refresh into the controller snapshot.
type cycleProgress struct {
	c    *Controller
	snap domain.Snapshot
}

func (p *cycleProgress) Begin() {
	p.c.mu.Lock()
	p.c.snap.Loading = true
	p.c.mu.Unlock()
}

// Done clears Loading and applies out under one lock.
func (p *cycleProgress) Done(out *RefreshOutput) {
	c := p.c
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Loading = false
	if out == nil {
		return
	}
	c.snap.Guards = out.Guards
	c.snap.MintAllowed = out.MintAllowed
	c.snap.OwnedTokens = len(out.OwnedTokens)
	c.snap.Gallery = out.Gallery
	c.snap.ChainTime = out.ChainTime
	c.snap.RefreshedAt = c.now().UnixMilli()
	c.snap.LastError = ""
	p.snap = c.snap.Clone()
}

// RunOnce runs one load and refresh cycle on the calling goroutine.
// Returns false without doing anything if a cycle is already running.
func (c *Controller) RunOnce(ctx context.Context) bool {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("cycle already running, skipping")
		if c.metrics != nil {
			c.metrics.RecordSkip(SkipAlreadyRunning)
		}
		return false
	}
	defer c.busy.Store(false)

	c.mu.RLock()
	check := c.snap.CheckEligibility
	wallet := c.wallet
	c.mu.RUnlock()

	if !check {
		if c.metrics != nil {
			c.metrics.RecordSkip(SkipCheckDisabled)
		}
		return true
	}

	started := c.now()
	_, loadErr := c.loader.Load(ctx, check)
	machine, guard := c.loader.Current()

	c.mu.Lock()
	c.snap.FirstRun = c.loader.FirstRun()
	c.snap.Machine = machineSummary(machine)
	c.snap.Guard = guardSummary(guard)
	if loadErr != nil {
		c.snap.LastError = loadErr.Error()
	}
	// Read the gate after loading so a modal opened meanwhile is honored.
	in := RefreshInput{
		Machine:          machine,
		Guard:            guard,
		Wallet:           wallet,
		CheckEligibility: c.snap.CheckEligibility,
		ModalOpen:        c.snap.ModalOpen,
	}
	c.mu.Unlock()

	if loadErr != nil {
		c.record(ctx, started, in, nil, loadErr)
		return true
	}

	progress := &cycleProgress{c: c}
	out, err := c.refresher.Refresh(ctx, in, progress)
	if errors.Is(err, ErrSkipped) {
		return true
	}
	if err != nil {
		c.logger.Error("refresh failed", zap.Error(err))
		c.mu.Lock()
		c.snap.LastError = err.Error()
		c.mu.Unlock()
		c.record(ctx, started, in, nil, err)
		return true
	}

	snap := progress.snap
	if c.metrics != nil {
		c.metrics.UpdateGallery(out.MintAllowed, len(out.OwnedTokens), len(out.Gallery))
	}
	c.record(ctx, started, in, out, nil)
	for _, h := range c.hooks {
		h(ctx, snap)
	}
	return true
}

func (c *Controller) record(ctx context.Context, started time.Time, in RefreshInput, out *RefreshOutput, err error) {
	if c.recorder == nil {
		return
	}
	run := &domain.RefreshRun{
		ID:         uuid.NewString(),
		Outcome:    domain.RunCompleted,
		StartedAt:  started.UnixMilli(),
		FinishedAt: c.now().UnixMilli(),
	}
	if in.Machine != nil {
		run.CandyMachine = in.Machine.Address.String()
	}
	if !in.Wallet.IsZero() {
		run.Wallet = in.Wallet.String()
	}
	if err != nil {
		msg := err.Error()
		run.Outcome = domain.RunFailed
		run.Error = &msg
	}

	var guards []domain.GuardEvaluation
	if out != nil {
		run.MintAllowed = out.MintAllowed
		run.GuardCount = len(out.Guards)
		run.OwnedTokens = len(out.OwnedTokens)
		run.GalleryEntries = len(out.Gallery)
		run.MetadataFailures = out.MetadataFailures
		run.ChainTime = out.ChainTime
		guards = out.Guards
	}
	c.recorder.Record(ctx, run, guards)
}

func machineSummary(cm *candymachine.CandyMachine) *domain.MachineSummary {
	if cm == nil {
		return nil
	}
	return &domain.MachineSummary{
		Address:        cm.Address.String(),
		Version:        cm.Version.String(),
		Authority:      cm.Authority.String(),
		MintAuthority:  cm.MintAuthority.String(),
		CollectionMint: cm.CollectionMint.String(),
		ItemsAvailable: cm.Data.ItemsAvailable,
		ItemsRedeemed:  cm.ItemsRedeemed,
	}
}

func guardSummary(cg *candymachine.CandyGuard) *domain.GuardSummary {
	if cg == nil {
		return nil
	}
	groups := make([]string, 0, len(cg.Groups))
	for _, g := range candymachine.ResolveGroups(cg) {
		groups = append(groups, g.Label)
	}
	return &domain.GuardSummary{Address: cg.Address.String(), Groups: groups}
}
