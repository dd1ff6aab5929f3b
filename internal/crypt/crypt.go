// Package crypt provides the AEAD layer applied to columnar files at rest.
// AES-256-GCM with a fresh 96-bit nonce per file; the on-disk layout is the
// nonce followed by the sealed ciphertext.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"os"

	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/logging"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// nonceSize is the GCM nonce length in bytes.
const nonceSize = 12

// KeyProvider supplies the symmetric key. Key management itself lives
// outside this module.
type KeyProvider interface {
	Key() ([KeySize]byte, error)
}

// EnvKeyProvider reads a hex-encoded 32-byte key from the environment.
type EnvKeyProvider struct {
	// Var is the environment variable name, ENCRYPTION_KEY by default.
	Var string
}

// Key decodes the key from the environment.
func (p EnvKeyProvider) Key() ([KeySize]byte, error) {
	name := p.Var
	if name == "" {
		name = "ENCRYPTION_KEY"
	}

	var key [KeySize]byte
	raw, ok := os.LookupEnv(name)
	if !ok {
		return key, errors.NewEncryptionError(name+" is not set", nil)
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return key, errors.NewEncryptionError("invalid hex in "+name, err)
	}
	if len(decoded) != KeySize {
		return key, errors.NewEncryptionError(name+" must decode to 32 bytes", nil)
	}
	copy(key[:], decoded)
	return key, nil
}

// StaticKeyProvider returns a fixed key. Test use.
type StaticKeyProvider [KeySize]byte

// Key returns the fixed key.
func (p StaticKeyProvider) Key() ([KeySize]byte, error) {
	return [KeySize]byte(p), nil
}

// Manager performs AEAD operations with one immutable key.
type Manager struct {
	aead cipher.AEAD
}

// NewManager obtains the key from the provider. A nil provider generates an
// ephemeral key and warns; data written with it is unreadable after the
// process exits, so that path is for tests only.
func NewManager(provider KeyProvider, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Global()
	}

	var key [KeySize]byte
	if provider == nil {
		if _, err := rand.Read(key[:]); err != nil {
			return nil, errors.NewEncryptionError("generating ephemeral key", err)
		}
		log.Warn("no key provider wired; using an ephemeral encryption key")
	} else {
		k, err := provider.Key()
		if err != nil {
			return nil, err
		}
		key = k
	}
	return NewManagerWithKey(key)
}

// NewManagerWithKey builds a manager around an explicit key.
func NewManagerWithKey(key [KeySize]byte) (*Manager, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.NewEncryptionError("initializing cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.NewEncryptionError("initializing GCM", err)
	}
	return &Manager{aead: aead}, nil
}

// EncryptBytes seals plaintext under a fresh nonce. Two calls on the same
// plaintext produce distinct ciphertexts.
func (m *Manager) EncryptBytes(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.NewEncryptionError("generating nonce", err)
	}

	out := make([]byte, nonceSize, nonceSize+len(plaintext)+m.aead.Overhead())
	copy(out, nonce)
	return m.aead.Seal(out, nonce, plaintext, nil), nil
}

// DecryptBytes opens a sealed blob. Tampering, truncation, or a wrong key
// fail authentication.
func (m *Manager) DecryptBytes(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, errors.NewEncryptionError("ciphertext shorter than nonce", nil)
	}
	plaintext, err := m.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, errors.NewEncryptionError("authentication failed", err)
	}
	return plaintext, nil
}

// EncryptFile encrypts a file in place.
func (m *Manager) EncryptFile(path string) error {
	return m.EncryptFileTo(path, path)
}

// EncryptFileTo encrypts src into dst.
func (m *Manager) EncryptFileTo(src, dst string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return errors.NewIOError("reading "+src, err)
	}
	sealed, err := m.EncryptBytes(plaintext)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, sealed, 0600); err != nil {
		return errors.NewIOError("writing "+dst, err)
	}
	return nil
}

// DecryptFile decrypts a file in place.
func (m *Manager) DecryptFile(path string) error {
	return m.DecryptFileTo(path, path)
}

// DecryptFileTo decrypts src into dst.
func (m *Manager) DecryptFileTo(src, dst string) error {
	sealed, err := os.ReadFile(src)
	if err != nil {
		return errors.NewIOError("reading "+src, err)
	}
	plaintext, err := m.DecryptBytes(sealed)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, plaintext, 0600); err != nil {
		return errors.NewIOError("writing "+dst, err)
	}
	return nil
}

// SecureDelete overwrites the file with random bytes three times, then
// unlinks it. Missing files are not an error.
func SecureDelete(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewIOError("stating "+path, err)
	}

	size := info.Size()
	for pass := 0; pass < 3; pass++ {
		junk := make([]byte, size)
		if _, err := rand.Read(junk); err != nil {
			return errors.NewEncryptionError("generating overwrite data", err)
		}
		if err := os.WriteFile(path, junk, info.Mode()); err != nil {
			return errors.NewIOError("overwriting "+path, err)
		}
	}
	if err := os.Remove(path); err != nil {
		return errors.NewIOError("removing "+path, err)
	}
	return nil
}
