package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// marker prefixes every sealed value.
var marker = []byte("msx1")

// ErrDisabled is returned by New when encryption is turned off.
var ErrDisabled = errors.New("encryption: disabled")

// Sealer encrypts and decrypts values stored at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	// Open decrypts a sealed value. Values without the marker are returned
	// unchanged.
	Open(value []byte) ([]byte, error)
}

// New creates the Sealer selected by cfg.
func New(cfg Config) (Sealer, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := sha256.Sum256([]byte(cfg.Key))

	var (
		aead cipher.AEAD
		err  error
	)
	switch cfg.Algorithm {
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key[:])
	default:
		var block cipher.Block
		if block, err = aes.NewCipher(key[:]); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: create %s: %w", cfg.Algorithm, err)
	}
	return &aeadSealer{aead: aead}, nil
}

// IsSealed reports whether value carries the sealed marker.
func IsSealed(value []byte) bool {
	return bytes.HasPrefix(value, marker)
}

type aeadSealer struct {
	aead cipher.AEAD
}

// Seal returns marker || nonce || ciphertext.
func (s *aeadSealer) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(marker)+s.aead.NonceSize(), len(marker)+s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	copy(out, marker)
	nonce := out[len(marker):]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: generate nonce: %w", err)
	}
	return s.aead.Seal(out, nonce, plaintext, marker), nil
}

func (s *aeadSealer) Open(value []byte) ([]byte, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data := value[len(marker):]
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return nil, errors.New("encryption: sealed value too short")
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], marker)
	if err != nil {
		return nil, fmt.Errorf("encryption: open: %w", err)
	}
	return plain, nil
}
