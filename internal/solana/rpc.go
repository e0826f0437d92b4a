package solana

import "context"

// RPCClient defines the subset of the Solana JSON-RPC HTTP API the gallery uses.
type RPCClient interface {
	// GetAccountInfo retrieves a single account. Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves accounts in request order; missing accounts are nil entries.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)

	// GetTokenAccountsByOwner lists parsed token accounts owned by owner under programID.
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// GetBlockTime retrieves the estimated production time of a block. Nil if unavailable.
	GetBlockTime(ctx context.Context, slot int64) (*int64, error)
}
