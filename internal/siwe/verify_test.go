package siwe

import (
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedMessage builds a minimal sign-in message for key's address and signs
// its exact text the way a wallet would.
func signedMessage(t *testing.T, key *ecdsa.PrivateKey) (*Message, string) {
	t.Helper()

	address := crypto.PubkeyToAddress(key.PublicKey)
	raw := "service.example.org wants you to sign in with your Ethereum account:\n" +
		address.Hex() + "\n" +
		"\n" +
		"\n" +
		"URI: https://service.example.org/login\n" +
		"Version: 1\n" +
		"Chain ID: 1\n" +
		"Nonce: abc123\n" +
		"Issued At: 2026-08-01T10:00:00Z\n" +
		"Expiration Time: 2026-08-01T11:00:00Z"

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	sig, err := crypto.Sign(signHash(raw), key)
	require.NoError(t, err)

	return msg, hex.EncodeToString(sig)
}

func TestVerify_ValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := signedMessage(t, key)
	assert.NoError(t, msg.Verify(sig))
}

func TestVerify_HexPrefixTolerated(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := signedMessage(t, key)
	assert.NoError(t, msg.Verify("0x"+sig))
}

func TestVerify_LegacyRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := signedMessage(t, key)

	// Wallets emit v as 27/28 rather than 0/1
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)
	raw[64] += 27
	assert.NoError(t, msg.Verify(hex.EncodeToString(raw)))
}

func TestVerify_WrongSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, _ := signedMessage(t, key)

	// Signature over the same text by a different key recovers to a
	// different address
	otherSig, err := crypto.Sign(signHash(msg.raw), otherKey)
	require.NoError(t, err)

	err = msg.Verify(hex.EncodeToString(otherSig))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_TamperedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := signedMessage(t, key)

	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)
	raw[10] ^= 0x01

	err = msg.Verify(hex.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MalformedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg, sig := signedMessage(t, key)

	tests := []struct {
		name string
		sig  string
	}{
		{"not hex", "zz" + sig[2:]},
		{"too short", sig[:128]},
		{"too long", sig + "ff"},
		{"bad recovery id", sig[:128] + "05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := msg.Verify(tt.sig)
			assert.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}
