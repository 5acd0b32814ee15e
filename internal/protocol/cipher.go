package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	// ErrInvalidKeySize is returned when the shared secret is not a valid AES key length.
	ErrInvalidKeySize = errors.New("secret key must be 16, 24 or 32 bytes")
	// ErrDecryption covers every base64, cipher, padding and UTF-8 failure.
	ErrDecryption = errors.New("decryption failed")
)

// Cipher decrypts frames sealed with the team's shared secret using AES-CBC
// with a random IV prepended to the ciphertext and PKCS#7 padding.
type Cipher struct {
	block cipher.Block
}

// NewCipher builds a cipher from the secret's raw bytes. Secrets of any other
// length than an AES key size are rejected rather than truncated or padded.
func NewCipher(secret string) (*Cipher, error) {
	switch len(secret) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(secret))
	}
	block, err := aes.NewCipher([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}
	return &Cipher{block: block}, nil
}

// Decrypt turns a base64(IV‖ciphertext) payload back into its UTF-8
// plaintext. Any failure is reported as ErrDecryption so callers can tell a
// failed decrypt from a genuinely empty message.
func (c *Cipher) Decrypt(encoded []byte) (string, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(raw, bytes.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrDecryption, err)
	}
	raw = raw[:n]

	size := c.block.BlockSize()
	if len(raw) < 2*size || len(raw)%size != 0 {
		return "", fmt.Errorf("%w: payload of %d bytes is not IV plus whole blocks", ErrDecryption, len(raw))
	}
	iv, body := raw[:size], raw[size:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain, size)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not UTF-8", ErrDecryption)
	}
	return string(plain), nil
}

// Encrypt seals plaintext the way an evaluation client does.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	size := c.block.BlockSize()
	padded := pad([]byte(plaintext), size)
	raw := make([]byte, size+len(padded))
	iv := raw[:size]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(raw[size:], padded)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// EncryptFrame returns plaintext encrypted and framed for the wire.
func (c *Cipher) EncryptFrame(plaintext string) ([]byte, error) {
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(sealed), nil
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", ErrDecryption, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding byte %d", ErrDecryption, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrDecryption)
		}
	}
	return data[:len(data)-n], nil
}
