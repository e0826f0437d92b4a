// Package eligibility evaluates candy guard groups for a wallet and lists the wallet's tokens.
package eligibility

import (
	"context"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/solana"
)

// Result is the outcome of one evaluation.
type Result struct {
	Guards      []domain.GuardEvaluation
	OwnedTokens []domain.OwnedToken
}

// Evaluator computes per-group mint eligibility and the owned tokens of wallet.
// A zero wallet means no wallet is connected. now is the chain time in unix seconds.
type Evaluator interface {
	Evaluate(ctx context.Context, wallet solana.PublicKey, guard *candymachine.CandyGuard, machine *candymachine.CandyMachine, now int64) (*Result, error)
}
