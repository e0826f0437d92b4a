package gallery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/eligibility"
	"candy-gallery/internal/notify"
	"candy-gallery/internal/solana"
	"candy-gallery/internal/solana/stub"
	"candy-gallery/internal/storage/memory"
)

var (
	machineAddr = solana.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	guardAddr   = solana.MustPublicKey("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BnwNYB")
	walletAddr  = solana.MustPublicKey("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

func testMachine(version candymachine.AccountVersion) *candymachine.CandyMachine {
	return &candymachine.CandyMachine{
		Address:       machineAddr,
		Version:       version,
		Authority:     walletAddr,
		MintAuthority: guardAddr,
		ItemsRedeemed: 5,
		Data:          candymachine.CandyMachineData{ItemsAvailable: 50, Symbol: "CNDY"},
	}
}

func testGuard() *candymachine.CandyGuard {
	return &candymachine.CandyGuard{
		Address:   guardAddr,
		Base:      machineAddr,
		Authority: walletAddr,
		Default:   candymachine.GuardSet{StartDate: &candymachine.StartDate{Date: 1}},
		Groups: []candymachine.Group{
			{Label: "OGs"},
			{Label: "public"},
		},
	}
}

// chain is a stub RPC holding a candy machine and its guard.
func chain(version candymachine.AccountVersion, withGuard bool) *stub.RPCClient {
	rpc := stub.NewRPCClient()
	rpc.AddAccount(machineAddr.String(), solana.CandyMachineProgramID, candymachine.EncodeCandyMachine(testMachine(version)))
	if withGuard {
		rpc.AddAccount(guardAddr.String(), solana.CandyGuardProgramID, candymachine.EncodeCandyGuard(testGuard()))
	}
	return rpc
}

// notifications returns a notifier and the log it writes to.
func notifications(t *testing.T) (*notify.Notifier, *memory.NotificationStore) {
	store := memory.NewNotificationStore()
	return notify.New(zaptest.NewLogger(t), notify.WithStore(store)), store
}

func shownKeys(t *testing.T, store *memory.NotificationStore) []string {
	t.Helper()
	events, err := store.ListRecent(context.Background(), 100)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	keys := make([]string, 0, len(events))
	for _, e := range events {
		keys = append(keys, e.Key)
	}
	return keys
}

// fakeEvaluator returns result, or err, and records its inputs.
// When gate is set, each call blocks until gate yields a value.
type fakeEvaluator struct {
	mu      sync.Mutex
	result  *eligibility.Result
	err     error
	wallets []solana.PublicKey
	nows    []int64
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
	during  func()
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, wallet solana.PublicKey, _ *candymachine.CandyGuard, _ *candymachine.CandyMachine, now int64) (*eligibility.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.wallets = append(f.wallets, wallet)
	f.nows = append(f.nows, now)
	res, err, during := f.result, f.err, f.during
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if during != nil {
		during()
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &eligibility.Result{}, nil
	}
	return res, nil
}

func (f *fakeEvaluator) lastWallet() solana.PublicKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wallets) == 0 {
		return solana.PublicKey{}
	}
	return f.wallets[len(f.wallets)-1]
}

// fakeResolver maps every token whose URI is not in failing to an entry.
type fakeResolver struct {
	failing map[string]bool
}

func (f fakeResolver) Resolve(_ context.Context, tokens []domain.OwnedToken) ([]domain.GalleryEntry, int) {
	var out []domain.GalleryEntry
	for _, t := range tokens {
		if f.failing[t.URI] {
			continue
		}
		out = append(out, domain.GalleryEntry{Name: t.Name, ImageURL: t.URI + ".png", Mint: t.Mint})
	}
	return out, len(tokens) - len(out)
}

func ownedTokens(uris ...string) []domain.OwnedToken {
	out := make([]domain.OwnedToken, len(uris))
	for i, u := range uris {
		out[i] = domain.OwnedToken{Mint: "mint-" + u, Name: "token " + u, URI: u, Amount: 1}
	}
	return out
}
