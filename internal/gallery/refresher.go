package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/eligibility"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/solana"
)

// ErrSkipped is returned when a refresh precondition does not hold.
// Skipped refreshes are dropped, not queued.
var ErrSkipped = errors.New("refresh skipped")

// Skip reasons.
const (
	SkipNotLoaded      = "not_loaded"
	SkipCheckDisabled  = "check_disabled"
	SkipModalOpen      = "modal_open"
	SkipAlreadyRunning = "already_running"
)

// EntryResolver turns owned tokens into gallery entries. Implemented by metadata.Resolver.
type EntryResolver interface {
	Resolve(ctx context.Context, tokens []domain.OwnedToken) ([]domain.GalleryEntry, int)
}

// RefreshInput is the state a refresh starts from.
type RefreshInput struct {
	Machine          *candymachine.CandyMachine
	Guard            *candymachine.CandyGuard
	Wallet           solana.PublicKey
	CheckEligibility bool
	ModalOpen        bool
}

// RefreshOutput replaces the previous eligibility and gallery state.
type RefreshOutput struct {
	Guards           []domain.GuardEvaluation
	OwnedTokens      []domain.OwnedToken
	Gallery          []domain.GalleryEntry
	MintAllowed      bool
	ChainTime        int64
	MetadataFailures int
}

// Refresher evaluates guards and rebuilds the gallery.
type Refresher struct {
	evaluator eligibility.Evaluator
	resolver  EntryResolver
	clock     solana.Clock
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(evaluator eligibility.Evaluator, resolver EntryResolver, clock solana.Clock, metrics *observability.Metrics, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		evaluator: evaluator,
		resolver:  resolver,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// Progress observes the loading bracket of a refresh.
type Progress interface {
	// Begin is called before the guards are evaluated.
	Begin()
	// Done is called once after Begin, with nil when the refresh failed.
	// Implementations clear the loading flag in the same step that applies out.
	Done(out *RefreshOutput)
}

type noProgress struct{}

func (noProgress) Begin()              {}
func (noProgress) Done(*RefreshOutput) {}

// Refresh runs one refresh, bracketed by p. p is not called at all when the
// refresh is skipped.
func (r *Refresher) Refresh(ctx context.Context, in RefreshInput, p Progress) (out *RefreshOutput, err error) {
	if reason := skipReason(in); reason != "" {
		if r.metrics != nil {
			r.metrics.RecordSkip(reason)
		}
		r.logger.Debug("refresh skipped", zap.String("reason", reason))
		return nil, fmt.Errorf("%w: %s", ErrSkipped, reason)
	}

	if p == nil {
		p = noProgress{}
	}
	p.Begin()
	defer func() { p.Done(out) }()

	start := time.Now()
	out, err = r.refresh(ctx, in)
	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordRefresh(status, time.Since(start))
	}
	return out, err
}

func skipReason(in RefreshInput) string {
	switch {
	case in.Machine == nil || in.Guard == nil:
		return SkipNotLoaded
	case !in.CheckEligibility:
		return SkipCheckDisabled
	case in.ModalOpen:
		return SkipModalOpen
	}
	return ""
}

func (r *Refresher) refresh(ctx context.Context, in RefreshInput) (*RefreshOutput, error) {
	now, err := r.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain time: %w", err)
	}

	res, err := r.evaluator.Evaluate(ctx, in.Wallet, in.Guard, in.Machine, now)
	if err != nil {
		return nil, fmt.Errorf("evaluate guards: %w", err)
	}

	out := &RefreshOutput{
		Guards:      res.Guards,
		OwnedTokens: res.OwnedTokens,
		MintAllowed: domain.AnyAllowed(res.Guards),
		ChainTime:   now,
	}
	if out.Guards == nil {
		out.Guards = []domain.GuardEvaluation{}
	}
	if r.metrics != nil {
		for _, g := range out.Guards {
			r.metrics.RecordGuardEvaluation(g.Allowed)
		}
	}

	out.Gallery, out.MetadataFailures = r.resolver.Resolve(ctx, res.OwnedTokens)
	if out.Gallery == nil {
		out.Gallery = []domain.GalleryEntry{}
	}

	r.logger.Info("refresh completed",
		zap.Bool("mint_allowed", out.MintAllowed),
		zap.Int("guards", len(out.Guards)),
		zap.Int("owned_tokens", len(out.OwnedTokens)),
		zap.Int("gallery", len(out.Gallery)),
		zap.Int("metadata_failures", out.MetadataFailures),
	)
	return out, nil
}
