package candymachine

import (
	"bytes"
	"fmt"

	"candy-gallery/internal/solana"
)

// DefaultGroupLabel names the guard set used when a candy guard has no groups.
const DefaultGroupLabel = "default"

// groupLabelLength is the fixed, zero padded size of a group label.
const groupLabelLength = 6

type BotTax struct {
	Lamports        uint64 `json:"lamports"`
	LastInstruction bool   `json:"last_instruction"`
}

type SolPayment struct {
	Lamports    uint64           `json:"lamports"`
	Destination solana.PublicKey `json:"destination"`
}

type TokenPayment struct {
	Amount         uint64           `json:"amount"`
	Mint           solana.PublicKey `json:"mint"`
	DestinationATA solana.PublicKey `json:"destination_ata"`
}

type StartDate struct {
	Date int64 `json:"date"`
}

type ThirdPartySigner struct {
	SignerKey solana.PublicKey `json:"signer_key"`
}

type TokenGate struct {
	Amount uint64           `json:"amount"`
	Mint   solana.PublicKey `json:"mint"`
}

type Gatekeeper struct {
	GatekeeperNetwork solana.PublicKey `json:"gatekeeper_network"`
	ExpireOnUse       bool             `json:"expire_on_use"`
}

type EndDate struct {
	Date int64 `json:"date"`
}

type AllowList struct {
	MerkleRoot [32]byte `json:"merkle_root"`
}

type MintLimit struct {
	ID    uint8  `json:"id"`
	Limit uint16 `json:"limit"`
}

type NftPayment struct {
	RequiredCollection solana.PublicKey `json:"required_collection"`
	Destination        solana.PublicKey `json:"destination"`
}

type RedeemedAmount struct {
	Maximum uint64 `json:"maximum"`
}

type AddressGate struct {
	Address solana.PublicKey `json:"address"`
}

// CollectionGuard covers the guards that only name a required collection
// (nftGate, nftBurn, assetBurn, assetGate).
type CollectionGuard struct {
	RequiredCollection solana.PublicKey `json:"required_collection"`
}

type TokenBurn struct {
	Amount uint64           `json:"amount"`
	Mint   solana.PublicKey `json:"mint"`
}

// ProgramGate holds at most MaxProgramGatePrograms additional programs.
type ProgramGate struct {
	Additional []solana.PublicKey `json:"additional"`
}

// MaxProgramGatePrograms is the capacity of the programGate slot.
const MaxProgramGatePrograms = 5

type Allocation struct {
	ID    uint8  `json:"id"`
	Limit uint32 `json:"limit"`
}

type CollectionMintLimit struct {
	ID                 uint8            `json:"id"`
	Limit              uint16           `json:"limit"`
	RequiredCollection solana.PublicKey `json:"required_collection"`
}

type Edition struct {
	EditionStartOffset uint32 `json:"edition_start_offset"`
}

type AssetBurnMulti struct {
	RequiredCollection solana.PublicKey `json:"required_collection"`
	Num                uint8            `json:"num"`
}

type AssetPaymentMulti struct {
	RequiredCollection solana.PublicKey `json:"required_collection"`
	Destination        solana.PublicKey `json:"destination"`
	Num                uint8            `json:"num"`
}

// VanityMint regex is stored in a 100 byte slot.
type VanityMint struct {
	Regex string `json:"regex"`
}

// GuardSet is a set of enabled guards. Nil fields are disabled.
type GuardSet struct {
	BotTax             *BotTax              `json:"bot_tax,omitempty"`
	SolPayment         *SolPayment          `json:"sol_payment,omitempty"`
	TokenPayment       *TokenPayment        `json:"token_payment,omitempty"`
	StartDate          *StartDate           `json:"start_date,omitempty"`
	ThirdPartySigner   *ThirdPartySigner    `json:"third_party_signer,omitempty"`
	TokenGate          *TokenGate           `json:"token_gate,omitempty"`
	Gatekeeper         *Gatekeeper          `json:"gatekeeper,omitempty"`
	EndDate            *EndDate             `json:"end_date,omitempty"`
	AllowList          *AllowList           `json:"allow_list,omitempty"`
	MintLimit          *MintLimit           `json:"mint_limit,omitempty"`
	NftPayment         *NftPayment          `json:"nft_payment,omitempty"`
	RedeemedAmount     *RedeemedAmount      `json:"redeemed_amount,omitempty"`
	AddressGate        *AddressGate         `json:"address_gate,omitempty"`
	NftGate            *CollectionGuard     `json:"nft_gate,omitempty"`
	NftBurn            *CollectionGuard     `json:"nft_burn,omitempty"`
	TokenBurn          *TokenBurn           `json:"token_burn,omitempty"`
	FreezeSolPayment   *SolPayment          `json:"freeze_sol_payment,omitempty"`
	FreezeTokenPayment *TokenPayment        `json:"freeze_token_payment,omitempty"`
	ProgramGate        *ProgramGate         `json:"program_gate,omitempty"`
	Allocation         *Allocation          `json:"allocation,omitempty"`
	Token2022Payment   *TokenPayment        `json:"token2022_payment,omitempty"`
	SolFixedFee        *SolPayment          `json:"sol_fixed_fee,omitempty"`
	NftMintLimit       *CollectionMintLimit `json:"nft_mint_limit,omitempty"`
	Edition            *Edition             `json:"edition,omitempty"`
	AssetPayment       *NftPayment          `json:"asset_payment,omitempty"`
	AssetBurn          *CollectionGuard     `json:"asset_burn,omitempty"`
	AssetMintLimit     *CollectionMintLimit `json:"asset_mint_limit,omitempty"`
	AssetBurnMulti     *AssetBurnMulti      `json:"asset_burn_multi,omitempty"`
	AssetPaymentMulti  *AssetPaymentMulti   `json:"asset_payment_multi,omitempty"`
	AssetGate          *CollectionGuard     `json:"asset_gate,omitempty"`
	VanityMint         *VanityMint          `json:"vanity_mint,omitempty"`
}

// Enabled returns the names of enabled guards in on-chain order.
func (gs *GuardSet) Enabled() []string {
	var names []string
	for _, s := range guardSlots {
		if s.present(gs) {
			names = append(names, s.name)
		}
	}
	return names
}

// Group is a labelled guard set.
type Group struct {
	Label  string   `json:"label"`
	Guards GuardSet `json:"guards"`
}

// CandyGuard is a decoded candy guard account.
type CandyGuard struct {
	Address   solana.PublicKey `json:"address"`
	Base      solana.PublicKey `json:"base"`
	Bump      uint8            `json:"bump"`
	Authority solana.PublicKey `json:"authority"`
	Default   GuardSet         `json:"default"`
	Groups    []Group          `json:"groups"`
}

// ResolveGroups returns the guard sets a minter can choose from.
// Without groups the default set is returned under DefaultGroupLabel.
// Otherwise each group inherits every default guard it does not set itself.
func ResolveGroups(cg *CandyGuard) []Group {
	if len(cg.Groups) == 0 {
		return []Group{{Label: DefaultGroupLabel, Guards: cg.Default}}
	}
	out := make([]Group, len(cg.Groups))
	for i, g := range cg.Groups {
		merged := g.Guards
		for _, s := range guardSlots {
			s.inherit(&merged, &cg.Default)
		}
		out[i] = Group{Label: g.Label, Guards: merged}
	}
	return out
}

// guardSlot describes one guard position in the feature bitmask.
type guardSlot struct {
	name    string
	size    int
	present func(*GuardSet) bool
	decode  func(*reader, *GuardSet)
	encode  func(*writer, *GuardSet)
	inherit func(dst, src *GuardSet)
}

func slot[T any](name string, size int, field func(*GuardSet) **T, dec func(*reader) *T, enc func(*writer, *T)) guardSlot {
	return guardSlot{
		name:    name,
		size:    size,
		present: func(gs *GuardSet) bool { return *field(gs) != nil },
		decode:  func(r *reader, gs *GuardSet) { *field(gs) = dec(r) },
		encode:  func(w *writer, gs *GuardSet) { enc(w, *field(gs)) },
		inherit: func(dst, src *GuardSet) {
			if *field(dst) == nil {
				*field(dst) = *field(src)
			}
		},
	}
}

func decSolPayment(r *reader) *SolPayment {
	return &SolPayment{Lamports: r.u64(), Destination: r.pubkey()}
}

func encSolPayment(w *writer, g *SolPayment) {
	w.u64(g.Lamports)
	w.pubkey(g.Destination)
}

func decTokenPayment(r *reader) *TokenPayment {
	return &TokenPayment{Amount: r.u64(), Mint: r.pubkey(), DestinationATA: r.pubkey()}
}

func encTokenPayment(w *writer, g *TokenPayment) {
	w.u64(g.Amount)
	w.pubkey(g.Mint)
	w.pubkey(g.DestinationATA)
}

func decCollection(r *reader) *CollectionGuard {
	return &CollectionGuard{RequiredCollection: r.pubkey()}
}

func encCollection(w *writer, g *CollectionGuard) {
	w.pubkey(g.RequiredCollection)
}

func decNftPayment(r *reader) *NftPayment {
	return &NftPayment{RequiredCollection: r.pubkey(), Destination: r.pubkey()}
}

func encNftPayment(w *writer, g *NftPayment) {
	w.pubkey(g.RequiredCollection)
	w.pubkey(g.Destination)
}

func decCollectionMintLimit(r *reader) *CollectionMintLimit {
	return &CollectionMintLimit{ID: r.u8(), Limit: r.u16(), RequiredCollection: r.pubkey()}
}

func encCollectionMintLimit(w *writer, g *CollectionMintLimit) {
	w.u8(g.ID)
	w.u16(g.Limit)
	w.pubkey(g.RequiredCollection)
}

// guardSlots lists every guard in feature-bit order.
var guardSlots = []guardSlot{
	slot("botTax", 9, func(gs *GuardSet) **BotTax { return &gs.BotTax },
		func(r *reader) *BotTax { return &BotTax{Lamports: r.u64(), LastInstruction: r.bool()} },
		func(w *writer, g *BotTax) { w.u64(g.Lamports); w.bool(g.LastInstruction) }),
	slot("solPayment", 40, func(gs *GuardSet) **SolPayment { return &gs.SolPayment }, decSolPayment, encSolPayment),
	slot("tokenPayment", 72, func(gs *GuardSet) **TokenPayment { return &gs.TokenPayment }, decTokenPayment, encTokenPayment),
	slot("startDate", 8, func(gs *GuardSet) **StartDate { return &gs.StartDate },
		func(r *reader) *StartDate { return &StartDate{Date: r.i64()} },
		func(w *writer, g *StartDate) { w.i64(g.Date) }),
	slot("thirdPartySigner", 32, func(gs *GuardSet) **ThirdPartySigner { return &gs.ThirdPartySigner },
		func(r *reader) *ThirdPartySigner { return &ThirdPartySigner{SignerKey: r.pubkey()} },
		func(w *writer, g *ThirdPartySigner) { w.pubkey(g.SignerKey) }),
	slot("tokenGate", 40, func(gs *GuardSet) **TokenGate { return &gs.TokenGate },
		func(r *reader) *TokenGate { return &TokenGate{Amount: r.u64(), Mint: r.pubkey()} },
		func(w *writer, g *TokenGate) { w.u64(g.Amount); w.pubkey(g.Mint) }),
	slot("gatekeeper", 33, func(gs *GuardSet) **Gatekeeper { return &gs.Gatekeeper },
		func(r *reader) *Gatekeeper { return &Gatekeeper{GatekeeperNetwork: r.pubkey(), ExpireOnUse: r.bool()} },
		func(w *writer, g *Gatekeeper) { w.pubkey(g.GatekeeperNetwork); w.bool(g.ExpireOnUse) }),
	slot("endDate", 8, func(gs *GuardSet) **EndDate { return &gs.EndDate },
		func(r *reader) *EndDate { return &EndDate{Date: r.i64()} },
		func(w *writer, g *EndDate) { w.i64(g.Date) }),
	slot("allowList", 32, func(gs *GuardSet) **AllowList { return &gs.AllowList },
		func(r *reader) *AllowList {
			g := &AllowList{}
			copy(g.MerkleRoot[:], r.take(32))
			return g
		},
		func(w *writer, g *AllowList) { w.raw(g.MerkleRoot[:]) }),
	slot("mintLimit", 3, func(gs *GuardSet) **MintLimit { return &gs.MintLimit },
		func(r *reader) *MintLimit { return &MintLimit{ID: r.u8(), Limit: r.u16()} },
		func(w *writer, g *MintLimit) { w.u8(g.ID); w.u16(g.Limit) }),
	slot("nftPayment", 64, func(gs *GuardSet) **NftPayment { return &gs.NftPayment }, decNftPayment, encNftPayment),
	slot("redeemedAmount", 8, func(gs *GuardSet) **RedeemedAmount { return &gs.RedeemedAmount },
		func(r *reader) *RedeemedAmount { return &RedeemedAmount{Maximum: r.u64()} },
		func(w *writer, g *RedeemedAmount) { w.u64(g.Maximum) }),
	slot("addressGate", 32, func(gs *GuardSet) **AddressGate { return &gs.AddressGate },
		func(r *reader) *AddressGate { return &AddressGate{Address: r.pubkey()} },
		func(w *writer, g *AddressGate) { w.pubkey(g.Address) }),
	slot("nftGate", 32, func(gs *GuardSet) **CollectionGuard { return &gs.NftGate }, decCollection, encCollection),
	slot("nftBurn", 32, func(gs *GuardSet) **CollectionGuard { return &gs.NftBurn }, decCollection, encCollection),
	slot("tokenBurn", 40, func(gs *GuardSet) **TokenBurn { return &gs.TokenBurn },
		func(r *reader) *TokenBurn { return &TokenBurn{Amount: r.u64(), Mint: r.pubkey()} },
		func(w *writer, g *TokenBurn) { w.u64(g.Amount); w.pubkey(g.Mint) }),
	slot("freezeSolPayment", 40, func(gs *GuardSet) **SolPayment { return &gs.FreezeSolPayment }, decSolPayment, encSolPayment),
	slot("freezeTokenPayment", 72, func(gs *GuardSet) **TokenPayment { return &gs.FreezeTokenPayment }, decTokenPayment, encTokenPayment),
	slot("programGate", 4+MaxProgramGatePrograms*32, func(gs *GuardSet) **ProgramGate { return &gs.ProgramGate },
		func(r *reader) *ProgramGate {
			n := r.u32()
			if n > MaxProgramGatePrograms {
				r.err = fmt.Errorf("programGate lists %d programs, max %d", n, MaxProgramGatePrograms)
				return nil
			}
			g := &ProgramGate{}
			for i := uint32(0); i < n; i++ {
				g.Additional = append(g.Additional, r.pubkey())
			}
			return g
		},
		func(w *writer, g *ProgramGate) {
			w.u32(uint32(len(g.Additional)))
			for _, pk := range g.Additional {
				w.pubkey(pk)
			}
		}),
	slot("allocation", 5, func(gs *GuardSet) **Allocation { return &gs.Allocation },
		func(r *reader) *Allocation { return &Allocation{ID: r.u8(), Limit: r.u32()} },
		func(w *writer, g *Allocation) { w.u8(g.ID); w.u32(g.Limit) }),
	slot("token2022Payment", 72, func(gs *GuardSet) **TokenPayment { return &gs.Token2022Payment }, decTokenPayment, encTokenPayment),
	slot("solFixedFee", 40, func(gs *GuardSet) **SolPayment { return &gs.SolFixedFee }, decSolPayment, encSolPayment),
	slot("nftMintLimit", 35, func(gs *GuardSet) **CollectionMintLimit { return &gs.NftMintLimit }, decCollectionMintLimit, encCollectionMintLimit),
	slot("edition", 4, func(gs *GuardSet) **Edition { return &gs.Edition },
		func(r *reader) *Edition { return &Edition{EditionStartOffset: r.u32()} },
		func(w *writer, g *Edition) { w.u32(g.EditionStartOffset) }),
	slot("assetPayment", 64, func(gs *GuardSet) **NftPayment { return &gs.AssetPayment }, decNftPayment, encNftPayment),
	slot("assetBurn", 32, func(gs *GuardSet) **CollectionGuard { return &gs.AssetBurn }, decCollection, encCollection),
	slot("assetMintLimit", 35, func(gs *GuardSet) **CollectionMintLimit { return &gs.AssetMintLimit }, decCollectionMintLimit, encCollectionMintLimit),
	slot("assetBurnMulti", 33, func(gs *GuardSet) **AssetBurnMulti { return &gs.AssetBurnMulti },
		func(r *reader) *AssetBurnMulti { return &AssetBurnMulti{RequiredCollection: r.pubkey(), Num: r.u8()} },
		func(w *writer, g *AssetBurnMulti) { w.pubkey(g.RequiredCollection); w.u8(g.Num) }),
	slot("assetPaymentMulti", 65, func(gs *GuardSet) **AssetPaymentMulti { return &gs.AssetPaymentMulti },
		func(r *reader) *AssetPaymentMulti {
			return &AssetPaymentMulti{RequiredCollection: r.pubkey(), Destination: r.pubkey(), Num: r.u8()}
		},
		func(w *writer, g *AssetPaymentMulti) {
			w.pubkey(g.RequiredCollection)
			w.pubkey(g.Destination)
			w.u8(g.Num)
		}),
	slot("assetGate", 32, func(gs *GuardSet) **CollectionGuard { return &gs.AssetGate }, decCollection, encCollection),
	slot("vanityMint", 104, func(gs *GuardSet) **VanityMint { return &gs.VanityMint },
		func(r *reader) *VanityMint { return &VanityMint{Regex: r.string()} },
		func(w *writer, g *VanityMint) { w.string(g.Regex) }),
}

func decodeGuardSet(r *reader) GuardSet {
	var gs GuardSet
	features := r.u64()
	for i, s := range guardSlots {
		if features&(1<<uint(i)) == 0 {
			continue
		}
		start := r.off
		s.decode(r, &gs)
		if r.err != nil {
			r.err = fmt.Errorf("guard %s: %w", s.name, r.err)
			return gs
		}
		if used := r.off - start; used > s.size {
			r.err = fmt.Errorf("guard %s: read %d bytes, slot holds %d", s.name, used, s.size)
			return gs
		}
		r.off = start
		r.skip(s.size)
	}
	return gs
}

func encodeGuardSet(w *writer, gs *GuardSet) {
	var features uint64
	for i, s := range guardSlots {
		if s.present(gs) {
			features |= 1 << uint(i)
		}
	}
	w.u64(features)
	for _, s := range guardSlots {
		if !s.present(gs) {
			continue
		}
		start := len(w.buf)
		s.encode(w, gs)
		if pad := s.size - (len(w.buf) - start); pad > 0 {
			w.raw(make([]byte, pad))
		}
	}
}

// DecodeCandyGuard decodes raw candy guard account data.
func DecodeCandyGuard(address solana.PublicKey, data []byte) (*CandyGuard, error) {
	r := newReader(data)
	r.discriminator(candyGuardDiscriminator)

	cg := &CandyGuard{Address: address}
	cg.Base = r.pubkey()
	cg.Bump = r.u8()
	cg.Authority = r.pubkey()
	if r.err != nil {
		return nil, fmt.Errorf("decode candy guard %s: %w", address, r.err)
	}

	// Guard data is optional while the account is being initialized.
	if r.off == len(data) {
		return cg, nil
	}

	cg.Default = decodeGuardSet(r)
	n := r.u32()
	for i := uint32(0); i < n && r.err == nil; i++ {
		label := r.take(groupLabelLength)
		gs := decodeGuardSet(r)
		cg.Groups = append(cg.Groups, Group{
			Label:  string(bytes.TrimRight(label, "\x00")),
			Guards: gs,
		})
	}

	if r.err != nil {
		return nil, fmt.Errorf("decode candy guard %s: %w", address, r.err)
	}
	return cg, nil
}

// EncodeCandyGuard serializes cg in the on-chain layout.
// Labels longer than six bytes are truncated.
func EncodeCandyGuard(cg *CandyGuard) []byte {
	w := &writer{}
	w.raw(candyGuardDiscriminator[:])
	w.pubkey(cg.Base)
	w.u8(cg.Bump)
	w.pubkey(cg.Authority)

	encodeGuardSet(w, &cg.Default)
	w.u32(uint32(len(cg.Groups)))
	for _, g := range cg.Groups {
		label := make([]byte, groupLabelLength)
		copy(label, g.Label)
		w.raw(label)
		encodeGuardSet(w, &g.Guards)
	}
	return w.buf
}
