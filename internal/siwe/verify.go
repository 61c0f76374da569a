package siwe

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// signatureLength is r (32) + s (32) + recovery id (1).
const signatureLength = 65

// Verify checks that signature was produced over the raw message text by the
// private key of the address embedded in the message. It is pure validation;
// nothing is stored or mutated.
func (m *Message) Verify(signature string) error {
	sig, err := parseSignature(signature)
	if err != nil {
		return err
	}

	pub, err := crypto.SigToPub(signHash(m.raw), sig)
	if err != nil {
		return fmt.Errorf("%w: recovery failed", ErrInvalidSignature)
	}
	if crypto.PubkeyToAddress(*pub) != m.Address {
		return fmt.Errorf("%w: signer does not match message address", ErrInvalidSignature)
	}
	return nil
}

// parseSignature decodes a 65-byte hex signature, tolerating a 0x prefix and
// the legacy 27/28 recovery id convention.
func parseSignature(signature string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrMalformedSignature)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedSignature, len(sig), signatureLength)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, fmt.Errorf("%w: bad recovery id", ErrMalformedSignature)
	}
	return sig, nil
}

// signHash computes the EIP-191 personal-sign digest wallets actually sign.
func signHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}
