package eligibility

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"candy-gallery/internal/candymachine"
	"candy-gallery/internal/domain"
	"candy-gallery/internal/solana"
)

// maxMultipleAccounts is the getMultipleAccounts request limit.
const maxMultipleAccounts = 100

// OwnedTokenLister lists the tokens of a wallet that carry Metaplex metadata.
type OwnedTokenLister struct {
	rpc              solana.RPCClient
	filterCollection bool
	batchSize        int
	logger           *zap.Logger
}

// ListerOption configures an OwnedTokenLister.
type ListerOption func(*OwnedTokenLister)

// WithCollectionFilter keeps only tokens of the candy machine's verified collection.
func WithCollectionFilter(enabled bool) ListerOption {
	return func(l *OwnedTokenLister) { l.filterCollection = enabled }
}

// WithBatchSize overrides the getMultipleAccounts batch size.
func WithBatchSize(n int) ListerOption {
	return func(l *OwnedTokenLister) {
		if n > 0 && n <= maxMultipleAccounts {
			l.batchSize = n
		}
	}
}

// NewOwnedTokenLister creates a lister.
func NewOwnedTokenLister(rpc solana.RPCClient, logger *zap.Logger, opts ...ListerOption) *OwnedTokenLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &OwnedTokenLister{
		rpc:       rpc,
		batchSize: maxMultipleAccounts,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Filter applies the collection filter, if enabled.
func (l *OwnedTokenLister) Filter(tokens []domain.OwnedToken, machine *candymachine.CandyMachine) []domain.OwnedToken {
	if !l.filterCollection || machine == nil || machine.CollectionMint.IsZero() {
		return tokens
	}
	collection := machine.CollectionMint.String()
	out := make([]domain.OwnedToken, 0, len(tokens))
	for _, t := range tokens {
		if t.Collection == collection {
			out = append(out, t)
		}
	}
	return out
}

// FromAccounts resolves the Metaplex metadata of non-empty token accounts, in account order.
// Mints without a decodable metadata account are skipped. No collection filter is applied.
func (l *OwnedTokenLister) FromAccounts(ctx context.Context, accounts []solana.TokenAccount) ([]domain.OwnedToken, error) {
	type pending struct {
		account  solana.TokenAccount
		metadata string
	}

	var queue []pending
	for _, acc := range accounts {
		if acc.Amount == 0 {
			continue
		}
		mint, err := solana.ParsePublicKey(acc.Mint)
		if err != nil {
			l.logger.Debug("skip token account", zap.String("account", acc.Address), zap.Error(err))
			continue
		}
		pda, err := solana.FindMetadataAddress(mint)
		if err != nil {
			continue
		}
		queue = append(queue, pending{account: acc, metadata: pda.String()})
	}

	owned := make([]domain.OwnedToken, 0, len(queue))
	for start := 0; start < len(queue); start += l.batchSize {
		end := start + l.batchSize
		if end > len(queue) {
			end = len(queue)
		}
		batch := queue[start:end]

		keys := make([]string, len(batch))
		for i, p := range batch {
			keys[i] = p.metadata
		}
		infos, err := l.rpc.GetMultipleAccounts(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("get metadata accounts: %w", err)
		}

		for i, p := range batch {
			if i >= len(infos) || infos[i] == nil || infos[i].Owner != solana.TokenMetadataProgramID {
				continue
			}
			data, err := infos[i].DecodeData()
			if err != nil {
				continue
			}
			md, err := candymachine.DecodeTokenMetadata(data)
			if err != nil {
				l.logger.Debug("skip undecodable metadata", zap.String("mint", p.account.Mint), zap.Error(err))
				continue
			}

			token := domain.OwnedToken{
				Mint:         p.account.Mint,
				TokenAccount: p.account.Address,
				Amount:       p.account.Amount,
				Name:         md.Name,
				Symbol:       md.Symbol,
				URI:          md.URI,
			}
			if key, ok := md.VerifiedCollection(); ok {
				token.Collection = key.String()
			}
			owned = append(owned, token)
		}
	}
	return owned, nil
}
