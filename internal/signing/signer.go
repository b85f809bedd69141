package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces and verifies HMAC-SHA256 signatures over checksums,
// providing non-repudiation on top of the tamper-evident checksum.
type Signer struct {
	keyring *Keyring
}

// NewSigner wraps a keyring. The keyring constructor has already enforced
// that a usable active key exists.
func NewSigner(keyring *Keyring) *Signer {
	return &Signer{keyring: keyring}
}

// ActiveKeyVersion is the version new records are signed with.
func (s *Signer) ActiveKeyVersion() string {
	return s.keyring.ActiveVersion()
}

// Sign computes the HMAC-SHA256 hex signature of a checksum under the key
// identified by version.
func (s *Signer) Sign(checksum, version string) (string, error) {
	key, err := s.keyring.Key(version)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(checksum))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature for checksum under the given key version
// and compares it in constant time against the stored value.
func (s *Signer) Verify(checksum, version, signature string) (bool, error) {
	expected, err := s.Sign(checksum, version)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
