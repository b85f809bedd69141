package signing

import (
	"encoding/hex"
	"fmt"
	"sync"

	dErrors "attest/pkg/domain-errors"
)

// KeySize is the required HMAC key size in bytes (256 bits).
const KeySize = 32

// Keyring holds versioned HMAC keys. Historical records verify against the
// key version recorded on them; new signatures always use the active key.
//
// Keys are never auto-generated. A missing or malformed active key is a
// construction error so the service fails at startup rather than ever
// persisting an unsigned record.
type Keyring struct {
	mu     sync.RWMutex
	keys   map[string][]byte
	active string
}

// NewKeyring builds a keyring from hex-encoded 32-byte keys by version.
func NewKeyring(hexKeys map[string]string, activeVersion string) (*Keyring, error) {
	if len(hexKeys) == 0 {
		return nil, dErrors.New(dErrors.CodeSigningKeyMissing, "no signing keys configured")
	}

	keys := make(map[string][]byte, len(hexKeys))
	for version, hexKey := range hexKeys {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, dErrors.Wrap(
				fmt.Errorf("key %s: %w", version, err),
				dErrors.CodeSigningKeyMissing, "signing key is not valid hex")
		}
		if len(key) != KeySize {
			return nil, dErrors.Newf(dErrors.CodeSigningKeyMissing,
				"signing key %s must be %d bytes, got %d", version, KeySize, len(key))
		}
		keys[version] = key
	}

	if _, ok := keys[activeVersion]; !ok {
		return nil, dErrors.Newf(dErrors.CodeSigningKeyMissing,
			"active signing key version %q not configured", activeVersion)
	}

	return &Keyring{keys: keys, active: activeVersion}, nil
}

// ActiveVersion returns the version new signatures are produced with.
func (k *Keyring) ActiveVersion() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// Key returns the key material for a version.
func (k *Keyring) Key(version string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[version]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeSigningKeyMissing,
			"signing key version %q not configured", version)
	}
	return key, nil
}

// Rotate adds a new key and makes it the active version. Existing versions
// stay resolvable so historical records keep verifying.
func (k *Keyring) Rotate(version, hexKey string) error {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeSigningKeyMissing, "signing key is not valid hex")
	}
	if len(key) != KeySize {
		return dErrors.Newf(dErrors.CodeSigningKeyMissing,
			"signing key %s must be %d bytes, got %d", version, KeySize, len(key))
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[version] = key
	k.active = version
	return nil
}
