package gallery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/eligibility"
	"candy-gallery/internal/notify"
	"candy-gallery/internal/solana"
	"candy-gallery/internal/storage/memory"
)

const waitFor = 2 * time.Second

type controllerHarness struct {
	ctrl   *Controller
	rpc    solana.RPCClient
	eval   *fakeEvaluator
	shown  *memory.NotificationStore
	runs   *memory.RefreshRunStore
	evals  *memory.GuardEvaluationStore
	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T, rpc solana.RPCClient, address string, eval *fakeEvaluator, opts ...ControllerOption) *controllerHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	n, shown := notifications(t)
	runs := memory.NewRefreshRunStore()
	evals := memory.NewGuardEvaluationStore()

	loader := NewLoader(rpc, address, n, nil, logger)
	refresher := NewRefresher(eval, fakeResolver{}, solana.FixedClock(1_700_000_000), nil, logger)
	opts = append([]ControllerOption{WithRecorder(NewRecorder(runs, evals, nil, logger))}, opts...)

	return &controllerHarness{
		ctrl:  NewController(loader, refresher, logger, opts...),
		rpc:   rpc,
		eval:  eval,
		shown: shown,
		runs:  runs,
		evals: evals,
	}
}

// start runs the controller worker until the test ends.
func (h *controllerHarness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		h.ctrl.Run(ctx)
	}()
}

func (h *controllerHarness) stop() {
	h.cancel()
	<-h.done
}

func (h *controllerHarness) recentRuns(t *testing.T) []*domain.RefreshRun {
	t.Helper()
	runs, err := h.runs.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	return runs
}

func TestController_InitialSnapshot(t *testing.T) {
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), &fakeEvaluator{})

	s := h.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.True(t, s.CheckEligibility)
	assert.True(t, s.FirstRun)
	assert.False(t, s.MintAllowed)
	assert.Equal(t, []domain.GuardEvaluation{{Label: "startDefault"}}, s.Guards)
}

func TestController_NoAddressScenario(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, chain(candymachine.AccountVersionV2, true), "", &fakeEvaluator{})
	h.start(t)
	defer h.stop()

	require.Eventually(t, func() bool { return !h.ctrl.Snapshot().FirstRun }, waitFor, 5*time.Millisecond)
	h.ctrl.Trigger()
	require.Eventually(t, func() bool { return len(h.recentRuns(t)) == 2 }, waitFor, 5*time.Millisecond)

	assert.Equal(t, []string{notify.KeyNoCandyMachine}, shownKeys(t, h.shown))
	s := h.ctrl.Snapshot()
	assert.Nil(t, s.Machine)
	assert.Nil(t, s.Guard)
	assert.False(t, s.Loading)
	assert.Zero(t, h.eval.calls.Load(), "refresher never runs")
	assert.Equal(t, domain.RunFailed, h.recentRuns(t)[0].Outcome)
}

func TestController_WrongVersionScenario(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, chain(candymachine.AccountVersionV1, true), machineAddr.String(), &fakeEvaluator{})
	h.start(t)
	defer h.stop()

	require.Eventually(t, func() bool { return len(h.recentRuns(t)) == 1 }, waitFor, 5*time.Millisecond)

	assert.Equal(t, []string{notify.KeyWrongAccountVersion}, shownKeys(t, h.shown))
	s := h.ctrl.Snapshot()
	assert.Nil(t, s.Guard)
	assert.Nil(t, s.Machine)
	assert.Zero(t, h.eval.calls.Load())
}

func TestController_FullCycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eval := &fakeEvaluator{result: &eligibility.Result{
		Guards: []domain.GuardEvaluation{
			{Label: "OGs", Allowed: false, Reason: "mint has ended"},
			{Label: "public", Allowed: true, MaxAmount: 2},
		},
		OwnedTokens: ownedTokens("a", "b"),
	}}
	var hooked atomic.Int32
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval,
		WithWallet(walletAddr),
		WithSnapshotHook(func(_ context.Context, s domain.Snapshot) {
			if s.MintAllowed {
				hooked.Add(1)
			}
		}),
	)
	h.start(t)
	defer h.stop()

	require.Eventually(t, func() bool { return hooked.Load() == 1 }, waitFor, 5*time.Millisecond)

	s := h.ctrl.Snapshot()
	assert.NotZero(t, s.RefreshedAt)
	assert.False(t, s.Loading)
	assert.False(t, s.FirstRun)
	assert.True(t, s.MintAllowed)
	assert.Equal(t, 2, s.OwnedTokens)
	assert.Len(t, s.Gallery, 2)
	assert.Equal(t, int64(1_700_000_000), s.ChainTime)
	assert.Equal(t, walletAddr.String(), s.Wallet)
	require.NotNil(t, s.Machine)
	assert.Equal(t, machineAddr.String(), s.Machine.Address)
	assert.Equal(t, "V2", s.Machine.Version)
	require.NotNil(t, s.Guard)
	assert.Equal(t, []string{"OGs", "public"}, s.Guard.Groups)
	assert.Empty(t, s.LastError)

	runs := h.recentRuns(t)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunCompleted, runs[0].Outcome)
	assert.True(t, runs[0].MintAllowed)
	assert.Equal(t, 2, runs[0].GuardCount)
	assert.Equal(t, walletAddr.String(), runs[0].Wallet)

	records, err := h.evals.GetByRunID(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "OGs", records[0].Label)
	assert.Equal(t, "mint has ended", records[0].Reason)
}

func TestController_ModalOpenSkipsRefresh(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), &fakeEvaluator{})
	h.ctrl.SetModalOpen(true)
	h.start(t)
	defer h.stop()

	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Machine != nil }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.ctrl.Busy() }, waitFor, 5*time.Millisecond)

	assert.Zero(t, h.eval.calls.Load())
	assert.False(t, h.ctrl.Snapshot().Loading)
	assert.Zero(t, h.ctrl.Snapshot().RefreshedAt)

	// Closing the modal does not queue the skipped refresh.
	h.ctrl.SetModalOpen(false)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.eval.calls.Load())

	h.ctrl.Trigger()
	require.Eventually(t, func() bool { return h.eval.calls.Load() == 1 }, waitFor, 5*time.Millisecond)
}

func TestController_ToggleGatesCycles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rpc := chain(candymachine.AccountVersionV2, true)
	h := newHarness(t, rpc, machineAddr.String(), &fakeEvaluator{}, WithCheckEligibility(false))
	h.start(t)
	defer h.stop()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rpc.Calls("getAccountInfo"))
	assert.True(t, h.ctrl.Snapshot().FirstRun)

	h.ctrl.SetCheckEligibility(true)
	require.Eventually(t, func() bool { return h.eval.calls.Load() == 1 }, waitFor, 5*time.Millisecond)

	// Setting it to true again is not a change.
	h.ctrl.SetCheckEligibility(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), h.eval.calls.Load())
}

func TestController_WalletChangeTriggersCycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eval := &fakeEvaluator{}
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval)
	h.start(t)
	defer h.stop()

	require.Eventually(t, func() bool { return eval.calls.Load() == 1 }, waitFor, 5*time.Millisecond)
	assert.True(t, eval.lastWallet().IsZero())

	h.ctrl.ConnectWallet(walletAddr)
	require.Eventually(t, func() bool { return eval.calls.Load() == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, walletAddr, eval.lastWallet())

	h.ctrl.ConnectWallet(walletAddr)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), eval.calls.Load(), "same wallet is not a change")

	h.ctrl.DisconnectWallet()
	require.Eventually(t, func() bool { return eval.calls.Load() == 3 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, h.ctrl.Snapshot().Wallet)
}

func TestController_TriggersCoalesce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eval := &fakeEvaluator{gate: make(chan struct{}), entered: make(chan struct{}, 10)}
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval)
	h.start(t)
	defer h.stop()

	<-eval.entered
	assert.True(t, h.ctrl.Busy())
	assert.True(t, h.ctrl.Snapshot().Loading)
	assert.False(t, h.ctrl.RunOnce(context.Background()), "no re-entrant cycle")

	for i := 0; i < 10; i++ {
		h.ctrl.Trigger()
	}
	eval.gate <- struct{}{}

	// Exactly one more cycle for the ten triggers.
	<-eval.entered
	eval.gate <- struct{}{}
	require.Eventually(t, func() bool { return !h.ctrl.Busy() }, waitFor, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(2), eval.calls.Load())
	assert.False(t, h.ctrl.Snapshot().Loading)
}

func TestController_EvaluatorErrorKeepsSnapshot(t *testing.T) {
	eval := &fakeEvaluator{result: &eligibility.Result{
		Guards: []domain.GuardEvaluation{{Label: "public", Allowed: true, MaxAmount: 1}},
	}}
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval)
	ctx := context.Background()

	require.True(t, h.ctrl.RunOnce(ctx))
	require.True(t, h.ctrl.Snapshot().MintAllowed)

	eval.mu.Lock()
	eval.err = assert.AnError
	eval.mu.Unlock()
	require.True(t, h.ctrl.RunOnce(ctx))

	s := h.ctrl.Snapshot()
	assert.True(t, s.MintAllowed)
	assert.False(t, s.Loading)
	assert.Contains(t, s.LastError, assert.AnError.Error())

	outcomes := make(map[domain.RunOutcome]int)
	for _, r := range h.recentRuns(t) {
		outcomes[r.Outcome]++
		if r.Outcome == domain.RunFailed {
			require.NotNil(t, r.Error)
		}
	}
	assert.Equal(t, map[domain.RunOutcome]int{domain.RunCompleted: 1, domain.RunFailed: 1}, outcomes)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	eval := &fakeEvaluator{result: &eligibility.Result{OwnedTokens: ownedTokens("a")}}
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval)
	require.True(t, h.ctrl.RunOnce(context.Background()))

	s := h.ctrl.Snapshot()
	require.Len(t, s.Gallery, 1)
	s.Gallery[0].Name = "mutated"
	assert.NotEqual(t, "mutated", h.ctrl.Snapshot().Gallery[0].Name)
}

func TestController_ConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), &fakeEvaluator{})
	h.start(t)
	defer h.stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.ctrl.Trigger()
				h.ctrl.SetModalOpen(j%2 == 0)
				_ = h.ctrl.Snapshot()
				if i == 0 {
					h.ctrl.ConnectWallet(walletAddr)
				}
			}
		}(i)
	}
	wg.Wait()
	h.ctrl.SetModalOpen(false)
	require.Eventually(t, func() bool { return !h.ctrl.Busy() && !h.ctrl.Snapshot().Loading }, waitFor, 5*time.Millisecond)
}

func TestController_LoadingClearsWithGallery(t *testing.T) {
	eval := &fakeEvaluator{
		result: &eligibility.Result{OwnedTokens: ownedTokens("a")},
		during: func() { time.Sleep(time.Millisecond) },
	}
	h := newHarness(t, chain(candymachine.AccountVersionV2, true), machineAddr.String(), eval)
	ctx := context.Background()

	stop := make(chan struct{})
	var (
		watched    sync.WaitGroup
		sawLoading bool
		stale      int
	)
	watched.Add(1)
	go func() {
		defer watched.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := h.ctrl.Snapshot()
			if s.Loading {
				sawLoading = true
				continue
			}
			if sawLoading && len(s.Gallery) != 1 {
				stale++
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.True(t, h.ctrl.RunOnce(ctx))
	}
	close(stop)
	watched.Wait()

	assert.True(t, sawLoading)
	assert.Zero(t, stale, "Loading=false observed before the gallery was applied")
	s := h.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.Len(t, s.Gallery, 1)
}
