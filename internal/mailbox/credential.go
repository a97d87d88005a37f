package mailbox

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following OWASP recommendations. These match the
// parameters used for admin and SIP credentials elsewhere in the PBX.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// ErrInvalidPIN is returned by SetPIN and ValidatePIN for a PIN that is
// not exactly 4 to 6 ASCII digits.
var ErrInvalidPIN = errors.New("pin must be 4 to 6 digits")

// credKind discriminates the credential variants.
type credKind int

const (
	credUnset credKind = iota
	credPlaintext
	credHashed
)

// Credential is a mailbox PIN credential. Exactly one representation is
// populated: a plaintext PIN from legacy configuration, or an argon2id
// hash plus salt from the credential database. The zero value is Unset
// and fails every verification; there is no "no PIN means open access"
// path.
type Credential struct {
	kind  credKind
	plain string
	hash  []byte
	salt  []byte
}

// PlaintextCredential wraps a config-sourced plaintext PIN.
func PlaintextCredential(pin string) Credential {
	return Credential{kind: credPlaintext, plain: pin}
}

// HashedCredential wraps a database-sourced argon2id hash and its salt.
func HashedCredential(hash, salt []byte) Credential {
	return Credential{kind: credHashed, hash: hash, salt: salt}
}

// IsSet reports whether any credential representation is populated.
func (c Credential) IsSet() bool {
	return c.kind != credUnset
}

// Verify checks a candidate PIN against the credential. Comparisons are
// constant-time for both representations. An Unset credential always
// fails closed.
func (c Credential) Verify(candidate string) bool {
	switch c.kind {
	case credPlaintext:
		return subtle.ConstantTimeCompare([]byte(c.plain), []byte(candidate)) == 1
	case credHashed:
		computed := argon2.IDKey([]byte(candidate), c.salt,
			argon2Time, argon2Memory, argon2Threads, uint32(len(c.hash)))
		return subtle.ConstantTimeCompare(c.hash, computed) == 1
	default:
		return false
	}
}

// ValidatePIN checks the PIN format: exactly 4 to 6 ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrInvalidPIN
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

// HashPIN derives an argon2id hash of the PIN with a fresh random salt.
func HashPIN(pin string) (hash, salt []byte, err error) {
	salt = make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}
	hash = argon2.IDKey([]byte(pin), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return hash, salt, nil
}
