// Package encoding seals small values (history snapshots, session state)
// into URL-safe strings.
//
// Two modes are supported:
//   - Signed (default): msgpack + base64 + truncated HMAC-SHA256, readable
//     but tamper-proof
//   - Encrypted: msgpack sealed with AES-256-GCM, fully opaque
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Open.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// Codec seals and opens values with a single key.
type Codec struct {
	key []byte
	gcm cipher.AEAD
}

// NewCodec creates a codec. Keys shorter than 32 bytes are stretched with
// SHA-256.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, fmt.Errorf("encoding: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encoding: gcm: %w", err)
	}
	return &Codec{key: key, gcm: gcm}, nil
}

// Seal msgpack-encodes v and signs it, or encrypts it when sensitive.
func (c *Codec) Seal(v any, sensitive bool) (string, error) {
	packed, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding: marshal: %w", err)
	}
	if sensitive {
		return c.encrypt(packed)
	}
	return c.sign(packed), nil
}

// Open reverses Seal into v.
func (c *Codec) Open(sealed string, sensitive bool, v any) error {
	var (
		packed []byte
		err    error
	)
	if sensitive {
		packed, err = c.decrypt(sealed)
	} else {
		packed, err = c.verify(sealed)
	}
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(packed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

// sign produces base64(data) "." base64(mac[:16]).
func (c *Codec) sign(data []byte) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	sig := mac.Sum(nil)[:16]
	return base64.RawURLEncoding.EncodeToString(data) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func (c *Codec) verify(sealed string) ([]byte, error) {
	body, sigPart, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidFormat)
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)[:16]) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

func (c *Codec) encrypt(data []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encoding: nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(c.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (c *Codec) decrypt(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(raw) < c.gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidFormat)
	}
	nonce, ciphertext := raw[:c.gcm.NonceSize()], raw[c.gcm.NonceSize():]
	out, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return out, nil
}
