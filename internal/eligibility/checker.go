package eligibility

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/solana"
)

// Reasons reported for blocked groups.
const (
	ReasonNoWallet          = "connect your wallet"
	ReasonSoldOut           = "sold out"
	ReasonNotStarted        = "mint has not started"
	ReasonEnded             = "mint has ended"
	ReasonAddressGate       = "wallet is not the allowed address"
	ReasonRedeemedAmount    = "redeemed amount reached"
	ReasonInsufficientSOL   = "not enough SOL"
	ReasonInsufficientToken = "not enough tokens"
	ReasonMintLimit         = "mint limit reached"
	ReasonMissingNFT        = "no NFT of the required collection"
	ReasonNotAllowListed    = "wallet is not on the allow list"
)

// Checker is the RPC-backed Evaluator.
type Checker struct {
	rpc       solana.RPCClient
	lister    *OwnedTokenLister
	allowList *AllowList
	logger    *zap.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithAllowList sets the addresses checked by allowList guards.
func WithAllowList(list *AllowList) CheckerOption {
	return func(c *Checker) { c.allowList = list }
}

// NewChecker creates a Checker.
func NewChecker(rpc solana.RPCClient, lister *OwnedTokenLister, logger *zap.Logger, opts ...CheckerOption) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lister == nil {
		lister = NewOwnedTokenLister(rpc, logger)
	}
	c := &Checker{rpc: rpc, lister: lister, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Evaluator = (*Checker)(nil)

// walletState is the chain state of the wallet shared by all groups.
type walletState struct {
	address     solana.PublicKey
	lamports    uint64
	tokens      map[string]uint64 // mint -> raw amount
	collections map[string]uint64 // verified collection -> owned count
	counters    map[uint8]uint16  // mintLimit id -> mints so far
}

// Evaluate implements Evaluator.
func (c *Checker) Evaluate(ctx context.Context, wallet solana.PublicKey, guard *candymachine.CandyGuard, machine *candymachine.CandyMachine, now int64) (*Result, error) {
	if wallet.IsZero() {
		return &Result{Guards: []domain.GuardEvaluation{{
			Label:  candymachine.DefaultGroupLabel,
			Reason: ReasonNoWallet,
		}}}, nil
	}

	groups := candymachine.ResolveGroups(guard)
	state, accounts, err := c.loadWallet(ctx, wallet, groups)
	if err != nil {
		return nil, err
	}

	// Collection guards count every held NFT, not only the displayed ones.
	all, err := c.lister.FromAccounts(ctx, accounts)
	if err != nil {
		return nil, err
	}
	owned := c.lister.Filter(all, machine)
	for _, t := range all {
		if t.Collection != "" {
			state.collections[t.Collection] += t.Amount
		}
	}

	if err := c.loadCounters(ctx, state, guard, machine, groups); err != nil {
		return nil, err
	}

	evals := make([]domain.GuardEvaluation, 0, len(groups))
	for _, g := range groups {
		evals = append(evals, c.evaluateGroup(g, state, machine, now))
	}

	c.logger.Debug("evaluated guards",
		zap.String("wallet", wallet.String()),
		zap.Int("groups", len(evals)),
		zap.Int("owned", len(owned)),
		zap.Bool("allowed", domain.AnyAllowed(evals)),
	)
	return &Result{Guards: evals, OwnedTokens: owned}, nil
}

func (c *Checker) loadWallet(ctx context.Context, wallet solana.PublicKey, groups []candymachine.Group) (*walletState, []solana.TokenAccount, error) {
	state := &walletState{
		address:     wallet,
		tokens:      make(map[string]uint64),
		collections: make(map[string]uint64),
		counters:    make(map[uint8]uint16),
	}

	needs2022 := false
	for _, g := range groups {
		if g.Guards.Token2022Payment != nil {
			needs2022 = true
		}
	}

	var accounts, accounts2022 []solana.TokenAccount
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		bal, err := c.rpc.GetBalance(egCtx, wallet.String())
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		state.lamports = bal
		return nil
	})
	eg.Go(func() error {
		var err error
		accounts, err = c.rpc.GetTokenAccountsByOwner(egCtx, wallet.String(), solana.TokenProgramID)
		if err != nil {
			return fmt.Errorf("get token accounts: %w", err)
		}
		return nil
	})
	if needs2022 {
		eg.Go(func() error {
			var err error
			accounts2022, err = c.rpc.GetTokenAccountsByOwner(egCtx, wallet.String(), solana.Token2022ProgramID)
			if err != nil {
				return fmt.Errorf("get token-2022 accounts: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	for _, acc := range accounts {
		state.tokens[acc.Mint] += acc.Amount
	}
	for _, acc := range accounts2022 {
		state.tokens[acc.Mint] += acc.Amount
	}
	return state, accounts, nil
}

// loadCounters fetches the mint counters of every mintLimit guard in one request.
func (c *Checker) loadCounters(ctx context.Context, state *walletState, guard *candymachine.CandyGuard, machine *candymachine.CandyMachine, groups []candymachine.Group) error {
	var ids []uint8
	var pdas []solana.PublicKey
	seen := make(map[uint8]bool)
	for _, g := range groups {
		ml := g.Guards.MintLimit
		if ml == nil || seen[ml.ID] {
			continue
		}
		seen[ml.ID] = true
		pda, err := candymachine.FindMintCounterAddress(ml.ID, state.address, guard.Address, machine.Address)
		if err != nil {
			return fmt.Errorf("derive mint counter: %w", err)
		}
		ids = append(ids, ml.ID)
		pdas = append(pdas, pda)
	}
	if len(pdas) == 0 {
		return nil
	}

	keys := make([]string, len(pdas))
	for i, p := range pdas {
		keys[i] = p.String()
	}
	infos, err := c.rpc.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return fmt.Errorf("get mint counters: %w", err)
	}
	for i, pda := range pdas {
		if i >= len(infos) || infos[i] == nil {
			continue
		}
		data, err := infos[i].DecodeData()
		if err != nil {
			return fmt.Errorf("mint counter %s: %w", pda, err)
		}
		count, err := candymachine.DecodeMintCounter(data)
		if err != nil {
			return fmt.Errorf("mint counter %s: %w", pda, err)
		}
		state.counters[ids[i]] = count
	}
	return nil
}

// evaluation accumulates the verdict of one group.
type evaluation struct {
	label  string
	max    uint64
	reason string
}

func (e *evaluation) block(reason string) {
	if e.reason == "" {
		e.reason = reason
	}
}

func (e *evaluation) limit(n uint64) {
	if n < e.max {
		e.max = n
	}
}

func (e *evaluation) result() domain.GuardEvaluation {
	if e.reason != "" {
		return domain.GuardEvaluation{Label: e.label, Reason: e.reason}
	}
	return domain.GuardEvaluation{Label: e.label, Allowed: e.max > 0, MaxAmount: e.max}
}

func (c *Checker) evaluateGroup(g candymachine.Group, s *walletState, machine *candymachine.CandyMachine, now int64) domain.GuardEvaluation {
	e := &evaluation{label: g.Label, max: math.MaxUint64}
	gs := g.Guards

	if machine.SoldOut() {
		e.block(ReasonSoldOut)
	}
	e.limit(machine.ItemsRemaining())

	if gs.StartDate != nil && now < gs.StartDate.Date {
		e.block(ReasonNotStarted)
	}
	if gs.EndDate != nil && now > gs.EndDate.Date {
		e.block(ReasonEnded)
	}
	if gs.AddressGate != nil && gs.AddressGate.Address != s.address {
		e.block(ReasonAddressGate)
	}
	if ra := gs.RedeemedAmount; ra != nil {
		if machine.ItemsRedeemed >= ra.Maximum {
			e.block(ReasonRedeemedAmount)
		} else {
			e.limit(ra.Maximum - machine.ItemsRedeemed)
		}
	}

	// Lamports spent per mint.
	var lamports uint64
	for _, p := range []*candymachine.SolPayment{gs.SolPayment, gs.FreezeSolPayment, gs.SolFixedFee} {
		if p != nil {
			lamports += p.Lamports
		}
	}
	if lamports > 0 {
		if s.lamports < lamports {
			e.block(ReasonInsufficientSOL)
		} else {
			e.limit(s.lamports / lamports)
		}
	}

	// Tokens spent per mint, grouped by mint.
	spend := make(map[string]uint64)
	for _, p := range []*candymachine.TokenPayment{gs.TokenPayment, gs.FreezeTokenPayment, gs.Token2022Payment} {
		if p != nil {
			spend[p.Mint.String()] += p.Amount
		}
	}
	if gs.TokenBurn != nil {
		spend[gs.TokenBurn.Mint.String()] += gs.TokenBurn.Amount
	}
	for mint, amount := range spend {
		if amount == 0 {
			continue
		}
		if s.tokens[mint] < amount {
			e.block(ReasonInsufficientToken)
		} else {
			e.limit(s.tokens[mint] / amount)
		}
	}
	if tg := gs.TokenGate; tg != nil && s.tokens[tg.Mint.String()] < tg.Amount {
		e.block(ReasonInsufficientToken)
	}

	if ml := gs.MintLimit; ml != nil {
		count := s.counters[ml.ID]
		if count >= ml.Limit {
			e.block(ReasonMintLimit)
		} else {
			e.limit(uint64(ml.Limit - count))
		}
	}

	for _, cg := range []*candymachine.CollectionGuard{gs.NftGate, gs.NftBurn} {
		if cg != nil && s.collections[cg.RequiredCollection.String()] == 0 {
			e.block(ReasonMissingNFT)
		}
	}
	if np := gs.NftPayment; np != nil {
		held := s.collections[np.RequiredCollection.String()]
		if held == 0 {
			e.block(ReasonMissingNFT)
		} else {
			e.limit(held)
		}
	}
	if nl := gs.NftMintLimit; nl != nil && s.collections[nl.RequiredCollection.String()] == 0 {
		e.block(ReasonMissingNFT)
	}
	if burn := gs.NftBurn; burn != nil {
		e.limit(s.collections[burn.RequiredCollection.String()])
	}

	if al := gs.AllowList; al != nil {
		if c.allowList == nil || c.allowList.Root() != al.MerkleRoot || !c.allowList.Contains(s.address) {
			e.block(ReasonNotAllowListed)
		}
	}

	return e.result()
}
