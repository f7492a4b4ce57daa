package address

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymousRoundTripsThroughBytes(t *testing.T) {
	a := Anonymous()
	require.True(t, a.IsAnonymous())

	parsed, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	require.True(t, parsed.Equal(a))
}

func TestFromEd25519RoundTripsThroughBytes(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a := FromEd25519(pub)
	require.False(t, a.IsAnonymous())

	parsed, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	require.True(t, parsed.Equal(a))
}

func TestWithSubresourceIDRejectsAnonymous(t *testing.T) {
	_, err := Anonymous().WithSubresourceID(1)
	require.Error(t, err)
}

func TestWithSubresourceIDRoundTrips(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	base := FromEd25519(pub)

	sub, err := base.WithSubresourceID(42)
	require.NoError(t, err)

	id, ok := sub.SubresourceID()
	require.True(t, ok)
	require.Equal(t, uint32(42), id)

	parsed, err := FromBytes(sub.Bytes())
	require.NoError(t, err)
	require.True(t, parsed.Equal(sub))
	parsedID, ok := parsed.SubresourceID()
	require.True(t, ok)
	require.Equal(t, uint32(42), parsedID)
}

func TestFromBytesRejectsEmptyAndMalformed(t *testing.T) {
	_, err := FromBytes(nil)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = FromBytes([]byte{byte(KindEd25519), 0x01})
	require.ErrorIs(t, err, ErrMalformed)

	_, err = FromBytes([]byte{0xFF})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestAddressMarshalCBORRoundTrips(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a := FromEd25519(pub)

	data, err := a.MarshalCBOR()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.UnmarshalCBOR(data))
	require.True(t, decoded.Equal(a))
}

func TestStringDistinguishesAnonymous(t *testing.T) {
	require.Equal(t, "anonymous", Anonymous().String())

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NotEqual(t, "anonymous", FromEd25519(pub).String())
}
