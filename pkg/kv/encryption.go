package kv

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation defaults. The salt is per-installation material, not a
// secret; change it to keep installations from sharing keys.
const (
	DefaultKDFIterations = 600000
	DefaultKDFSalt       = "tierdb-default-salt-change-me"
)

// ErrEmptyPassphrase is returned when deriving a key from an empty passphrase.
var ErrEmptyPassphrase = errors.New("kv: empty encryption passphrase")

// DeriveEncryptionKey turns a passphrase into a 32-byte AES-256 key for
// Options.EncryptionKey using PBKDF2-HMAC-SHA256.
//
// Example:
//
//	key, err := kv.DeriveEncryptionKey(os.Getenv("TIERDB_PASSPHRASE"), nil, 0)
//	if err != nil {
//		return err
//	}
//	store, err := kv.Open(kv.Options{Dir: dir, EncryptionKey: key})
func DeriveEncryptionKey(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) == 0 {
		salt = []byte(DefaultKDFSalt)
	}
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New), nil
}
