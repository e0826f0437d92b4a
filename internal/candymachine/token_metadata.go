package candymachine

import (
	"fmt"
	"strings"

	"candy-gallery/internal/solana"
)

// metadataKeyV1 is the Key byte of a Metaplex MetadataV1 account.
const metadataKeyV1 = 4

// TokenMetadata is the on-chain part of a Metaplex token metadata account.
type TokenMetadata struct {
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	TokenStandard        *TokenStandard
	Collection           *Collection
}

// Collection links an item to its collection NFT.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// VerifiedCollection returns the collection mint if it is verified.
func (m *TokenMetadata) VerifiedCollection() (solana.PublicKey, bool) {
	if m.Collection == nil || !m.Collection.Verified {
		return solana.PublicKey{}, false
	}
	return m.Collection.Key, true
}

// DecodeTokenMetadata decodes a Metaplex metadata account.
// Name, symbol and uri are stored zero padded; the padding is trimmed.
func DecodeTokenMetadata(data []byte) (*TokenMetadata, error) {
	r := newReader(data)
	if key := r.u8(); r.err == nil && key != metadataKeyV1 {
		return nil, fmt.Errorf("%w: metadata key %d", ErrWrongAccountType, key)
	}

	m := &TokenMetadata{
		UpdateAuthority: r.pubkey(),
		Mint:            r.pubkey(),
		Name:            trimPadding(r.string()),
		Symbol:          trimPadding(r.string()),
		URI:             trimPadding(r.string()),
	}
	m.SellerFeeBasisPoints = r.u16()
	if r.bool() {
		n := r.u32()
		for i := uint32(0); i < n && r.err == nil; i++ {
			m.Creators = append(m.Creators, Creator{
				Address:         r.pubkey(),
				Verified:        r.bool(),
				PercentageShare: r.u8(),
			})
		}
	}
	m.PrimarySaleHappened = r.bool()
	m.IsMutable = r.bool()
	if r.err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", r.err)
	}

	// Older accounts end here. Optional trailing fields are read only when present.
	if r.off < len(r.data) && r.bool() {
		r.u8() // edition nonce
	}
	if r.off < len(r.data) && r.bool() {
		ts := TokenStandard(r.u8())
		m.TokenStandard = &ts
	}
	if r.off < len(r.data) && r.bool() {
		m.Collection = &Collection{Verified: r.bool(), Key: r.pubkey()}
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", r.err)
	}
	return m, nil
}

// EncodeTokenMetadata builds Metaplex metadata account data.
func EncodeTokenMetadata(m *TokenMetadata) []byte {
	w := &writer{}
	w.u8(metadataKeyV1)
	w.pubkey(m.UpdateAuthority)
	w.pubkey(m.Mint)
	w.string(m.Name)
	w.string(m.Symbol)
	w.string(m.URI)
	w.u16(m.SellerFeeBasisPoints)
	w.bool(m.Creators != nil)
	if m.Creators != nil {
		w.u32(uint32(len(m.Creators)))
		for _, c := range m.Creators {
			w.pubkey(c.Address)
			w.bool(c.Verified)
			w.u8(c.PercentageShare)
		}
	}
	w.bool(m.PrimarySaleHappened)
	w.bool(m.IsMutable)
	w.bool(false) // edition nonce
	w.bool(m.TokenStandard != nil)
	if m.TokenStandard != nil {
		w.u8(uint8(*m.TokenStandard))
	}
	w.bool(m.Collection != nil)
	if m.Collection != nil {
		w.bool(m.Collection.Verified)
		w.pubkey(m.Collection.Key)
	}
	return w.buf
}

func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}
