// Package secrets encrypts exchange API credentials at rest. Accounts store
// only sealed strings; plaintext exists in memory just long enough to build
// a connector.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals and opens credential strings with XChaCha20-Poly1305. The
// sealed envelope is base64(nonce || ciphertext).
//
// A nil Cipher passes values through unchanged, which keeps local setups
// without a configured key working (credentials are then stored in plain
// text, and the log at startup says so).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a hex-encoded 32-byte key. An empty key
// yields a nil Cipher (passthrough mode).
func NewCipher(hexKey string) (*Cipher, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode encryption key")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "init cipher")
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext credential.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed credential.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if c == nil {
		return ciphertext, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "decode sealed credential")
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", errors.New("sealed credential too short")
	}

	nonce, payload := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plain, err := c.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", errors.Wrap(err, "open sealed credential")
	}
	return string(plain), nil
}

// GenerateKey returns a fresh hex-encoded key suitable for NewCipher.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Wrap(err, "generate key")
	}
	return hex.EncodeToString(key), nil
}
