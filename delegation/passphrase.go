package delegation

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DefaultPassphraseInfo is the domain-separation string used when a caller
// does not supply its own.
const DefaultPassphraseInfo = "tonk passphrase v1"

// DeriveSigningKey derives an Ed25519 signing key from passphrase via
// HKDF-SHA256 with an empty salt: the first 32 bytes of the HKDF output seed
// crypto/ed25519.NewKeyFromSeed. info defaults to DefaultPassphraseInfo when
// empty. Any conformant HKDF-SHA256 implementation (this one included) must
// produce byte-identical output for identical (passphrase, info) input.
func DeriveSigningKey(passphrase, info string) (ed25519.PrivateKey, error) {
	if info == "" {
		info = DefaultPassphraseInfo
	}
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("delegation: derive signing key: %w", err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
