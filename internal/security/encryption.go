package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const encPrefix = "enc:"

// maxCachedKeys bounds the derived keys kept per sealer. Every Seal uses a new
// salt, so the cache only needs the few values currently stored.
const maxCachedKeys = 8

// Sealer encrypts short secrets (the relay credential) for storage at rest
// using AES-256-GCM. The key is derived per value from the passphrase and a
// random salt via Argon2id, and the salt travels with the ciphertext so values
// survive process restarts. Derived keys are cached per salt.
type Sealer struct {
	mu         sync.RWMutex
	passphrase []byte
	keys       map[string][]byte // hex(salt) -> key
}

// NewSealer creates a sealer from a passphrase.
// Returns error if passphrase is empty.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return &Sealer{passphrase: []byte(passphrase), keys: make(map[string][]byte)}, nil
}

// Seal encrypts plaintext and returns "enc:" + hex(salt) + ":" + hex(nonce + ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Values without the "enc:" prefix are
// returned as-is (plaintext written before encryption was enabled).
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return sealed, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(sealed, encPrefix), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed checks if a string has the "enc:" prefix.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, encPrefix)
}

// Zeroize clears the passphrase and cached keys from memory. Call on shutdown.
func (s *Sealer) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.passphrase {
		s.passphrase[i] = 0
	}
	for id, key := range s.keys {
		wipe(key)
		delete(s.keys, id)
	}
}

// key returns the key for salt, deriving it on first use.
func (s *Sealer) key(salt []byte) []byte {
	id := hex.EncodeToString(salt)

	s.mu.RLock()
	key, ok := s.keys[id]
	if !ok {
		key = deriveKey(s.passphrase, salt)
	}
	s.mu.RUnlock()
	if ok {
		return key
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.keys[id]; ok {
		return cached
	}
	if len(s.keys) >= maxCachedKeys {
		// Evicted keys may still be in use by a concurrent caller.
		for old := range s.keys {
			delete(s.keys, old)
			break
		}
	}
	s.keys[id] = key
	return key
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (s *Sealer) gcm(salt []byte) (cipher.AEAD, error) {
	key := s.key(salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}
