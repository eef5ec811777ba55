package privacy

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	c, err := NewCodec(key, []byte("test-salt"))
	require.NoError(t, err)
	return c
}

func TestNewCodec_KeySize(t *testing.T) {
	_, err := NewCodec(make([]byte, 16), []byte("salt"))
	assert.Error(t, err)

	_, err = NewCodec(make([]byte, 32), nil)
	assert.Error(t, err, "salt is required")

	_, err = NewCodec(make([]byte, 32), []byte("salt"))
	assert.NoError(t, err)
}

func TestNewCodecFromHex(t *testing.T) {
	hexKey := hex.EncodeToString(bytes.Repeat([]byte{0x01}, 32))
	c, err := NewCodecFromHex(hexKey, "salt")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewCodecFromHex("not-hex", "salt")
	assert.Error(t, err)
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	c := newTestCodec(t)
	plaintext := []byte(`{"license_no":"D-1234567","name":"Jane Driver"}`)

	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "D-1234567")

	got, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	c := newTestCodec(t)
	plaintext := []byte("same input")

	ct1, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	ct2, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct2, "nonce reuse would leak equality of plaintexts")
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	c := newTestCodec(t)
	ciphertext, err := c.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0x01
	_, err = c.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecrypt_Truncated(t *testing.T) {
	c := newTestCodec(t)
	ciphertext, err := c.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	_, err = c.Decrypt(ciphertext[:8])
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = c.Decrypt(nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(bytes.Repeat([]byte{0x43}, 32), []byte("test-salt"))
	require.NoError(t, err)

	ciphertext, err := c.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestPseudonymize_Stable(t *testing.T) {
	c := newTestCodec(t)

	p1 := c.Pseudonymize("drv-1")
	p2 := c.Pseudonymize("drv-1")
	assert.Equal(t, p1, p2, "same identity must map to the same alias")

	assert.NotEqual(t, p1, c.Pseudonymize("drv-2"))
	assert.True(t, strings.HasPrefix(p1, "anon-"))
	assert.NotContains(t, p1, "drv-1")
}

func TestPseudonymize_SaltSeparatesDomains(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	c1, err := NewCodec(key, []byte("salt-a"))
	require.NoError(t, err)
	c2, err := NewCodec(key, []byte("salt-b"))
	require.NoError(t, err)

	assert.NotEqual(t, c1.Pseudonymize("drv-1"), c2.Pseudonymize("drv-1"))
}

func TestHashDocument(t *testing.T) {
	blob := []byte("scanned license")

	h1 := HashDocument(blob)
	h2 := HashDocument(blob)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex sha-256

	assert.NotEqual(t, h1, HashDocument([]byte("scanned license ")))
}
