package candymachine

import (
	"context"
	"errors"
	"fmt"

	"candy-gallery/internal/solana"
)

// FetchCandyMachine loads and decodes a candy machine account.
// A missing account returns ErrAccountNotFound.
func FetchCandyMachine(ctx context.Context, rpc solana.RPCClient, address solana.PublicKey) (*CandyMachine, error) {
	data, err := fetchOwned(ctx, rpc, address, solana.CandyMachineProgramID)
	if err != nil {
		return nil, fmt.Errorf("fetch candy machine %s: %w", address, err)
	}
	return DecodeCandyMachine(address, data)
}

// FetchCandyGuard loads and decodes a candy guard account.
func FetchCandyGuard(ctx context.Context, rpc solana.RPCClient, address solana.PublicKey) (*CandyGuard, error) {
	data, err := fetchOwned(ctx, rpc, address, solana.CandyGuardProgramID)
	if err != nil {
		return nil, fmt.Errorf("fetch candy guard %s: %w", address, err)
	}
	return DecodeCandyGuard(address, data)
}

// SafeFetchCandyGuard is FetchCandyGuard that returns nil, nil when the account does not exist
// or is not a candy guard (a machine whose mint authority is a plain wallet).
func SafeFetchCandyGuard(ctx context.Context, rpc solana.RPCClient, address solana.PublicKey) (*CandyGuard, error) {
	cg, err := FetchCandyGuard(ctx, rpc, address)
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrWrongOwner) {
		return nil, nil
	}
	return cg, err
}

func fetchOwned(ctx context.Context, rpc solana.RPCClient, address solana.PublicKey, owner string) ([]byte, error) {
	info, err := rpc.GetAccountInfo(ctx, address.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrAccountNotFound
	}
	if info.Owner != owner {
		return nil, fmt.Errorf("%w: %s", ErrWrongOwner, info.Owner)
	}
	return info.DecodeData()
}

// FindMintCounterAddress derives the mintLimit counter PDA of user for guard id.
func FindMintCounterAddress(id uint8, user, candyGuard, candyMachine solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{
		[]byte("mint_limit"),
		{id},
		user.Bytes(),
		candyGuard.Bytes(),
		candyMachine.Bytes(),
	}, solana.MustPublicKey(solana.CandyGuardProgramID))
	return pda, err
}

// mintCounterHeader is the Anchor discriminator before the count.
const mintCounterHeader = 8

// DecodeMintCounter returns the number of mints recorded in a mint counter account.
func DecodeMintCounter(data []byte) (uint16, error) {
	r := newReader(data)
	r.skip(mintCounterHeader)
	count := r.u16()
	if r.err != nil {
		return 0, fmt.Errorf("decode mint counter: %w", r.err)
	}
	return count, nil
}

// EncodeMintCounter builds mint counter account data.
func EncodeMintCounter(count uint16) []byte {
	disc := Discriminator("MintCounter")
	w := &writer{}
	w.raw(disc[:])
	w.u16(count)
	return w.buf
}
