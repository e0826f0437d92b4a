// Package candymachine decodes Metaplex candy machine core and candy guard accounts.
package candymachine

import (
	"errors"
	"fmt"

	"candy-gallery/internal/solana"
)

var (
	// ErrAccountNotFound is returned when the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrWrongAccountType is returned when the discriminator does not match.
	ErrWrongAccountType = errors.New("unexpected account type")
	// ErrWrongOwner is returned when the account is not owned by the expected program.
	ErrWrongOwner = errors.New("unexpected account owner")
)

// AccountVersion is the candy machine account layout version.
type AccountVersion uint8

const (
	AccountVersionV1 AccountVersion = 0
	AccountVersionV2 AccountVersion = 1
)

func (v AccountVersion) String() string {
	switch v {
	case AccountVersionV1:
		return "V1"
	case AccountVersionV2:
		return "V2"
	default:
		return fmt.Sprintf("V?(%d)", uint8(v))
	}
}

// TokenStandard of the items minted by a candy machine.
type TokenStandard uint8

const (
	TokenStandardNonFungible             TokenStandard = 0
	TokenStandardFungibleAsset           TokenStandard = 1
	TokenStandardFungible                TokenStandard = 2
	TokenStandardNonFungibleEdition      TokenStandard = 3
	TokenStandardProgrammableNonFungible TokenStandard = 4
)

// Creator is a royalty recipient.
type Creator struct {
	Address         solana.PublicKey `json:"address"`
	Verified        bool             `json:"verified"`
	PercentageShare uint8            `json:"percentage_share"`
}

// ConfigLineSettings describes how item names and URIs are stored.
type ConfigLineSettings struct {
	PrefixName   string `json:"prefix_name"`
	NameLength   uint32 `json:"name_length"`
	PrefixURI    string `json:"prefix_uri"`
	URILength    uint32 `json:"uri_length"`
	IsSequential bool   `json:"is_sequential"`
}

// HiddenSettings replace per-item config lines with a single placeholder.
type HiddenSettings struct {
	Name string   `json:"name"`
	URI  string   `json:"uri"`
	Hash [32]byte `json:"-"`
}

// CandyMachineData is the configurable part of a candy machine.
type CandyMachineData struct {
	ItemsAvailable       uint64              `json:"items_available"`
	Symbol               string              `json:"symbol"`
	SellerFeeBasisPoints uint16              `json:"seller_fee_basis_points"`
	MaxSupply            uint64              `json:"max_supply"`
	IsMutable            bool                `json:"is_mutable"`
	Creators             []Creator           `json:"creators"`
	ConfigLineSettings   *ConfigLineSettings `json:"config_line_settings,omitempty"`
	HiddenSettings       *HiddenSettings     `json:"hidden_settings,omitempty"`
}

// CandyMachine is a decoded candy machine core account.
type CandyMachine struct {
	Address        solana.PublicKey `json:"address"`
	Version        AccountVersion   `json:"version"`
	TokenStandard  TokenStandard    `json:"token_standard"`
	Features       [6]byte          `json:"-"`
	Authority      solana.PublicKey `json:"authority"`
	MintAuthority  solana.PublicKey `json:"mint_authority"`
	CollectionMint solana.PublicKey `json:"collection_mint"`
	ItemsRedeemed  uint64           `json:"items_redeemed"`
	Data           CandyMachineData `json:"data"`
}

// ItemsRemaining returns how many items can still be minted.
func (cm *CandyMachine) ItemsRemaining() uint64 {
	if cm.ItemsRedeemed >= cm.Data.ItemsAvailable {
		return 0
	}
	return cm.Data.ItemsAvailable - cm.ItemsRedeemed
}

// SoldOut reports whether every item has been redeemed.
func (cm *CandyMachine) SoldOut() bool {
	return cm.ItemsRemaining() == 0
}

// DecodeCandyMachine decodes raw candy machine account data.
// Config lines stored after the data section are not decoded.
func DecodeCandyMachine(address solana.PublicKey, data []byte) (*CandyMachine, error) {
	r := newReader(data)
	r.discriminator(candyMachineDiscriminator)

	cm := &CandyMachine{Address: address}
	cm.Version = AccountVersion(r.u8())
	cm.TokenStandard = TokenStandard(r.u8())
	copy(cm.Features[:], r.take(6))
	cm.Authority = r.pubkey()
	cm.MintAuthority = r.pubkey()
	cm.CollectionMint = r.pubkey()
	cm.ItemsRedeemed = r.u64()

	d := &cm.Data
	d.ItemsAvailable = r.u64()
	d.Symbol = r.string()
	d.SellerFeeBasisPoints = r.u16()
	d.MaxSupply = r.u64()
	d.IsMutable = r.bool()

	n := r.u32()
	if r.err == nil && int(n)*34 > len(data)-r.off {
		return nil, fmt.Errorf("decode candy machine %s: %w: %d creators", address, ErrShortData, n)
	}
	for i := uint32(0); i < n && r.err == nil; i++ {
		d.Creators = append(d.Creators, Creator{
			Address:         r.pubkey(),
			Verified:        r.bool(),
			PercentageShare: r.u8(),
		})
	}

	if r.bool() {
		d.ConfigLineSettings = &ConfigLineSettings{
			PrefixName:   r.string(),
			NameLength:   r.u32(),
			PrefixURI:    r.string(),
			URILength:    r.u32(),
			IsSequential: r.bool(),
		}
	}
	if r.bool() {
		hs := &HiddenSettings{
			Name: r.string(),
			URI:  r.string(),
		}
		copy(hs.Hash[:], r.take(32))
		d.HiddenSettings = hs
	}

	if r.err != nil {
		return nil, fmt.Errorf("decode candy machine %s: %w", address, r.err)
	}
	return cm, nil
}

// EncodeCandyMachine serializes cm in the on-chain layout.
func EncodeCandyMachine(cm *CandyMachine) []byte {
	w := &writer{}
	w.raw(candyMachineDiscriminator[:])
	w.u8(uint8(cm.Version))
	w.u8(uint8(cm.TokenStandard))
	w.raw(cm.Features[:])
	w.pubkey(cm.Authority)
	w.pubkey(cm.MintAuthority)
	w.pubkey(cm.CollectionMint)
	w.u64(cm.ItemsRedeemed)

	d := cm.Data
	w.u64(d.ItemsAvailable)
	w.string(d.Symbol)
	w.u16(d.SellerFeeBasisPoints)
	w.u64(d.MaxSupply)
	w.bool(d.IsMutable)
	w.u32(uint32(len(d.Creators)))
	for _, c := range d.Creators {
		w.pubkey(c.Address)
		w.bool(c.Verified)
		w.u8(c.PercentageShare)
	}

	w.bool(d.ConfigLineSettings != nil)
	if cls := d.ConfigLineSettings; cls != nil {
		w.string(cls.PrefixName)
		w.u32(cls.NameLength)
		w.string(cls.PrefixURI)
		w.u32(cls.URILength)
		w.bool(cls.IsSequential)
	}
	w.bool(d.HiddenSettings != nil)
	if hs := d.HiddenSettings; hs != nil {
		w.string(hs.Name)
		w.string(hs.URI)
		w.raw(hs.Hash[:])
	}
	return w.buf
}
