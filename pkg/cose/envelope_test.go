package cose

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealVerifyRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), env.Payload())

	require.NoError(t, kp.Verify(env))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)

	data, err := env.MarshalCBOR()
	require.NoError(t, err)

	tampered, err := ParseEnvelope(data)
	require.NoError(t, err)
	tampered.message.Payload = []byte("tampered")

	require.Error(t, kp.Verify(tampered))
}

func TestIdentityExtractsSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)

	id, err := env.Identity()
	require.NoError(t, err)
	require.True(t, id.Equal(kp.Identity()))
}

func TestParseEnvelopeRoundTripsMarshalCBOR(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)

	data, err := env.MarshalCBOR()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), parsed.Payload())
	require.NoError(t, kp.Verify(parsed))
}

func TestKeyRingVerifiesRegisteredSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	ring := NewKeyRing()
	addr := ring.Add(pub)
	require.True(t, addr.Equal(kp.Identity()))

	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, ring.Verify(env))
}

func TestKeyRingRejectsUnknownSigner(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp := NewEd25519KeyPair(priv)

	ring := NewKeyRing()
	env, err := kp.Seal([]byte("payload"))
	require.NoError(t, err)

	err = ring.Verify(env)
	require.ErrorIs(t, err, ErrUnknownIdentity)
}
