package candymachine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candy-gallery/internal/solana"
	"candy-gallery/internal/solana/stub"
)

var (
	machineAddr = solana.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	guardAddr   = solana.MustPublicKey("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BnwNYB")
	walletAddr  = solana.MustPublicKey("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

func testMachine() *CandyMachine {
	return &CandyMachine{
		Address:        machineAddr,
		Version:        AccountVersionV2,
		TokenStandard:  TokenStandardProgrammableNonFungible,
		Authority:      walletAddr,
		MintAuthority:  guardAddr,
		CollectionMint: solana.MustPublicKey(solana.TokenProgramID),
		ItemsRedeemed:  12,
		Data: CandyMachineData{
			ItemsAvailable:       100,
			Symbol:               "CNDY",
			SellerFeeBasisPoints: 500,
			IsMutable:            true,
			Creators: []Creator{
				{Address: walletAddr, Verified: true, PercentageShare: 100},
			},
			ConfigLineSettings: &ConfigLineSettings{
				PrefixName:   "Candy #",
				NameLength:   4,
				PrefixURI:    "https://arweave.net/",
				URILength:    43,
				IsSequential: false,
			},
		},
	}
}

func testGuard() *CandyGuard {
	return &CandyGuard{
		Address:   guardAddr,
		Base:      machineAddr,
		Bump:      254,
		Authority: walletAddr,
		Default: GuardSet{
			BotTax:     &BotTax{Lamports: 10_000_000, LastInstruction: true},
			SolPayment: &SolPayment{Lamports: 1_000_000_000, Destination: walletAddr},
			StartDate:  &StartDate{Date: 1_700_000_000},
		},
		Groups: []Group{
			{Label: "OGs", Guards: GuardSet{
				MintLimit:   &MintLimit{ID: 1, Limit: 3},
				SolPayment:  &SolPayment{Lamports: 500_000_000, Destination: walletAddr},
				ProgramGate: &ProgramGate{Additional: []solana.PublicKey{walletAddr}},
			}},
			{Label: "public", Guards: GuardSet{
				EndDate:    &EndDate{Date: 1_800_000_000},
				VanityMint: &VanityMint{Regex: "^CNDY"},
			}},
		},
	}
}

func TestDecodeCandyMachine_RoundTrip(t *testing.T) {
	want := testMachine()

	got, err := DecodeCandyMachine(machineAddr, EncodeCandyMachine(want))
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candy machine mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(88), got.ItemsRemaining())
	assert.False(t, got.SoldOut())
}

func TestDecodeCandyMachine_HiddenSettings(t *testing.T) {
	want := testMachine()
	want.Data.ConfigLineSettings = nil
	want.Data.HiddenSettings = &HiddenSettings{Name: "Mystery", URI: "https://example.com/h.json"}
	want.Data.HiddenSettings.Hash[0] = 0xAB

	got, err := DecodeCandyMachine(machineAddr, EncodeCandyMachine(want))
	require.NoError(t, err)
	require.NotNil(t, got.Data.HiddenSettings)
	assert.Equal(t, "Mystery", got.Data.HiddenSettings.Name)
	assert.Equal(t, byte(0xAB), got.Data.HiddenSettings.Hash[0])
	assert.Nil(t, got.Data.ConfigLineSettings)
}

func TestDecodeCandyMachine_Errors(t *testing.T) {
	valid := EncodeCandyMachine(testMachine())

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortData},
		{"truncated", valid[:60], ErrShortData},
		{"wrong discriminator", append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, valid[8:]...), ErrWrongAccountType},
		{"guard account", EncodeCandyGuard(testGuard()), ErrWrongAccountType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCandyMachine(machineAddr, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCandyMachine_SoldOut(t *testing.T) {
	cm := testMachine()
	cm.ItemsRedeemed = cm.Data.ItemsAvailable
	assert.True(t, cm.SoldOut())
	assert.Zero(t, cm.ItemsRemaining())
}

func TestDecodeCandyGuard_RoundTrip(t *testing.T) {
	want := testGuard()

	got, err := DecodeCandyGuard(guardAddr, EncodeCandyGuard(want))
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candy guard mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"botTax", "solPayment", "startDate"}, got.Default.Enabled())
}

func TestDecodeCandyGuard_HeaderOnly(t *testing.T) {
	full := EncodeCandyGuard(testGuard())

	got, err := DecodeCandyGuard(guardAddr, full[:8+32+1+32])
	require.NoError(t, err)
	assert.Equal(t, walletAddr, got.Authority)
	assert.Empty(t, got.Groups)
	assert.Empty(t, got.Default.Enabled())
}

func TestGuardSlots_Sizes(t *testing.T) {
	// Every guard must fit its fixed slot.
	for _, s := range guardSlots {
		var gs GuardSet
		w := &writer{}
		r := newReader(make([]byte, s.size))
		s.decode(r, &gs)
		require.NoError(t, r.err, s.name)
		require.True(t, s.present(&gs), s.name)

		start := len(w.buf)
		s.encode(w, &gs)
		assert.LessOrEqual(t, len(w.buf)-start, s.size, s.name)
	}
	assert.Len(t, guardSlots, 31)
}

func TestResolveGroups(t *testing.T) {
	t.Run("no groups returns default", func(t *testing.T) {
		cg := testGuard()
		cg.Groups = nil

		groups := ResolveGroups(cg)
		require.Len(t, groups, 1)
		assert.Equal(t, DefaultGroupLabel, groups[0].Label)
		assert.Equal(t, cg.Default, groups[0].Guards)
	})

	t.Run("groups inherit defaults", func(t *testing.T) {
		cg := testGuard()

		groups := ResolveGroups(cg)
		require.Len(t, groups, 2)

		og := groups[0].Guards
		assert.Equal(t, "OGs", groups[0].Label)
		assert.Equal(t, uint64(500_000_000), og.SolPayment.Lamports, "group value wins")
		assert.Equal(t, cg.Default.StartDate, og.StartDate, "default inherited")
		assert.Equal(t, cg.Default.BotTax, og.BotTax)

		pub := groups[1].Guards
		assert.Equal(t, uint64(1_000_000_000), pub.SolPayment.Lamports)
		assert.NotNil(t, pub.EndDate)

		// The source guard is not modified.
		assert.Nil(t, cg.Groups[0].Guards.StartDate)
	})
}

func TestFetchCandyMachine(t *testing.T) {
	ctx := context.Background()
	rpc := stub.NewRPCClient()
	rpc.AddAccount(machineAddr.String(), solana.CandyMachineProgramID, EncodeCandyMachine(testMachine()))

	cm, err := FetchCandyMachine(ctx, rpc, machineAddr)
	require.NoError(t, err)
	assert.Equal(t, AccountVersionV2, cm.Version)
	assert.Equal(t, guardAddr, cm.MintAuthority)

	t.Run("missing", func(t *testing.T) {
		_, err := FetchCandyMachine(ctx, rpc, walletAddr)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("wrong owner", func(t *testing.T) {
		rpc.AddAccount(walletAddr.String(), solana.SystemProgramID, nil)
		defer rpc.RemoveAccount(walletAddr.String())
		_, err := FetchCandyMachine(ctx, rpc, walletAddr)
		assert.ErrorIs(t, err, ErrWrongOwner)
	})

	t.Run("rpc failure", func(t *testing.T) {
		boom := errors.New("boom")
		rpc.SetError("getAccountInfo", boom)
		defer rpc.SetError("getAccountInfo", nil)
		_, err := FetchCandyMachine(ctx, rpc, machineAddr)
		assert.ErrorIs(t, err, boom)
	})
}

func TestSafeFetchCandyGuard(t *testing.T) {
	ctx := context.Background()
	rpc := stub.NewRPCClient()
	rpc.AddAccount(guardAddr.String(), solana.CandyGuardProgramID, EncodeCandyGuard(testGuard()))

	cg, err := SafeFetchCandyGuard(ctx, rpc, guardAddr)
	require.NoError(t, err)
	require.NotNil(t, cg)
	assert.Len(t, cg.Groups, 2)

	missing, err := SafeFetchCandyGuard(ctx, rpc, walletAddr)
	require.NoError(t, err)
	assert.Nil(t, missing)

	rpc.AddAccount(walletAddr.String(), solana.SystemProgramID, nil)
	notGuard, err := SafeFetchCandyGuard(ctx, rpc, walletAddr)
	require.NoError(t, err)
	assert.Nil(t, notGuard)

	rpc.AddAccount(machineAddr.String(), solana.CandyGuardProgramID, []byte{1, 2, 3})
	_, err = SafeFetchCandyGuard(ctx, rpc, machineAddr)
	assert.ErrorIs(t, err, ErrShortData)
}

func TestMintCounter(t *testing.T) {
	pda, err := FindMintCounterAddress(1, walletAddr, guardAddr, machineAddr)
	require.NoError(t, err)

	again, err := FindMintCounterAddress(1, walletAddr, guardAddr, machineAddr)
	require.NoError(t, err)
	assert.Equal(t, pda, again)

	other, err := FindMintCounterAddress(2, walletAddr, guardAddr, machineAddr)
	require.NoError(t, err)
	assert.NotEqual(t, pda, other)

	count, err := DecodeMintCounter(EncodeMintCounter(2))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), count)

	_, err = DecodeMintCounter([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortData)
}
