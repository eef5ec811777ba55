// Package privacy handles personal data crossing a trust boundary:
// authenticated encryption at rest, stable pseudonyms for wallet↔identity
// unlinkability, and display masking.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/veloride/settlement-core/internal/metrics"
)

// ErrAuthenticationFailed is returned when a ciphertext fails its
// authentication tag: tampered data, truncation, or a wrong key. Corrupt
// plaintext is never returned.
var ErrAuthenticationFailed = errors.New("ciphertext authentication failed")

const keySize = 32 // AES-256

// Codec encrypts with AES-256-GCM and pseudonymizes with keyed
// HMAC-SHA256. The ciphertext carries its own nonce (prepended), so
// decryption needs no state beyond the key.
type Codec struct {
	aead gcmAEAD
	salt []byte
}

type gcmAEAD cipher.AEAD

// NewCodec builds a codec from a 32-byte key and a pseudonymization salt.
// Key and salt are independent secrets: rotating one must not invalidate
// the other's output.
func NewCodec(key, salt []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("pseudonymization salt is required")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Codec{aead: aead, salt: salt}, nil
}

// NewCodecFromHex is the config-friendly constructor: hex key, utf-8 salt.
func NewCodecFromHex(hexKey, salt string) (*Codec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewCodec(key, []byte(salt))
}

// Encrypt seals plaintext with a fresh random nonce and returns
// nonce||ciphertext.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens nonce||ciphertext. Any tampering, truncation, or key
// mismatch yields ErrAuthenticationFailed.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		metrics.DecryptFailuresTotal.Inc()
		return nil, ErrAuthenticationFailed
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		metrics.DecryptFailuresTotal.Inc()
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Pseudonymize maps an identity to a stable alias: the same identity
// always yields the same alias, and reversing it requires the salt.
// Counterparties see the alias, never the raw identity.
func (c *Codec) Pseudonymize(identity string) string {
	mac := hmac.New(sha256.New, c.salt)
	mac.Write([]byte(identity))
	return "anon-" + hex.EncodeToString(mac.Sum(nil))[:16]
}

// HashDocument returns the content hash recorded on the ledger for a
// verification document blob.
func HashDocument(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
