package candymachine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenMetadata() *TokenMetadata {
	ts := TokenStandardNonFungible
	return &TokenMetadata{
		UpdateAuthority:      walletAddr,
		Mint:                 machineAddr,
		Name:                 "Candy #0042",
		Symbol:               "CNDY",
		URI:                  "https://arweave.net/abc",
		SellerFeeBasisPoints: 500,
		Creators:             []Creator{{Address: walletAddr, Verified: true, PercentageShare: 100}},
		IsMutable:            true,
		TokenStandard:        &ts,
		Collection:           &Collection{Verified: true, Key: guardAddr},
	}
}

func TestDecodeTokenMetadata_RoundTrip(t *testing.T) {
	want := testTokenMetadata()

	got, err := DecodeTokenMetadata(EncodeTokenMetadata(want))
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	key, ok := got.VerifiedCollection()
	assert.True(t, ok)
	assert.Equal(t, guardAddr, key)
}

func TestDecodeTokenMetadata_TrimsPadding(t *testing.T) {
	m := testTokenMetadata()
	m.Name = "Candy #1\x00\x00\x00\x00"
	m.URI = "https://arweave.net/x\x00\x00"

	got, err := DecodeTokenMetadata(EncodeTokenMetadata(m))
	require.NoError(t, err)
	assert.Equal(t, "Candy #1", got.Name)
	assert.Equal(t, "https://arweave.net/x", got.URI)
}

func TestDecodeTokenMetadata_LegacyLayout(t *testing.T) {
	m := testTokenMetadata()
	m.Creators = nil
	m.TokenStandard = nil
	m.Collection = nil
	full := EncodeTokenMetadata(m)

	// Drop the optional trailing fields.
	got, err := DecodeTokenMetadata(full[:len(full)-3])
	require.NoError(t, err)
	assert.Nil(t, got.Collection)
	_, ok := got.VerifiedCollection()
	assert.False(t, ok)
}

func TestDecodeTokenMetadata_UnverifiedCollection(t *testing.T) {
	m := testTokenMetadata()
	m.Collection.Verified = false

	got, err := DecodeTokenMetadata(EncodeTokenMetadata(m))
	require.NoError(t, err)
	_, ok := got.VerifiedCollection()
	assert.False(t, ok)
}

func TestDecodeTokenMetadata_Errors(t *testing.T) {
	_, err := DecodeTokenMetadata(nil)
	assert.ErrorIs(t, err, ErrShortData)

	data := EncodeTokenMetadata(testTokenMetadata())
	data[0] = 7
	_, err = DecodeTokenMetadata(data)
	assert.ErrorIs(t, err, ErrWrongAccountType)

	_, err = DecodeTokenMetadata(EncodeTokenMetadata(testTokenMetadata())[:80])
	assert.ErrorIs(t, err, ErrShortData)
}
