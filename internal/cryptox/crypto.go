// Package cryptox implements authenticated encryption of whole media blobs
// under a per-user symmetric key, plus password hashing for accounts.
//
// Blob layout:
//
//	+-------+---------+-------+---------------------+
//	| "MLC" | version | nonce | ciphertext || tag    |
//	+-------+---------+-------+---------------------+
//	| 3 B   | 1 B     | 12/24 | len(plaintext) + 16 |
//
// Version 1 is AES-256-GCM with a 12-byte nonce, version 2 is
// XChaCha20-Poly1305 with a 24-byte nonce. The 4-byte header is bound to the
// ciphertext as additional data, so a rewritten version byte fails
// authentication instead of selecting another cipher.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a user key in bytes.
const KeySize = 32

// Version identifies the AEAD scheme of a blob.
type Version byte

const (
	VersionAESGCM           Version = 1
	VersionXChaCha20Poly1305 Version = 2

	// DefaultVersion is used for new blobs unless configured otherwise.
	DefaultVersion = VersionAESGCM
)

var magic = []byte("MLC")

const headerSize = 4

var (
	// ErrDecryption is matched by every decryption failure.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidKey means the key material is not a usable key.
	ErrInvalidKey = fmt.Errorf("%w: invalid key", ErrDecryption)

	// ErrInvalidToken means the authentication tag did not verify: either the
	// key is not the one the blob was sealed with, or the ciphertext was altered.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrDecryption)

	// ErrCorruptData means the blob is structurally malformed.
	ErrCorruptData = fmt.Errorf("%w: corrupt data", ErrDecryption)

	// ErrUnsupportedVersion is returned when encrypting with an unknown scheme.
	ErrUnsupportedVersion = errors.New("unsupported cipher version")
)

// Codec seals new blobs with a fixed scheme version and opens blobs of any
// known version. The zero value uses DefaultVersion.
type Codec struct {
	Version Version
}

// NewCodec returns a Codec sealing with v.
func NewCodec(v Version) (*Codec, error) {
	if _, err := newAEAD(v, make([]byte, KeySize)); err != nil {
		return nil, err
	}
	return &Codec{Version: v}, nil
}

func (c *Codec) version() Version {
	if c == nil || c.Version == 0 {
		return DefaultVersion
	}
	return c.Version
}

// Encrypt seals plaintext under key and returns a self-describing blob.
func (c *Codec) Encrypt(plaintext, key []byte) ([]byte, error) {
	v := c.version()

	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	aead, err := newAEAD(v, key)
	if err != nil {
		return nil, err
	}

	header := append(append(make([]byte, 0, headerSize), magic...), byte(v))

	out := make([]byte, headerSize+aead.NonceSize(), headerSize+aead.NonceSize()+len(plaintext)+aead.Overhead())
	copy(out, header)

	nonce := out[headerSize : headerSize+aead.NonceSize()]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return aead.Seal(out, nonce, plaintext, header), nil
}

// Decrypt opens a blob produced by Encrypt. It returns either the complete
// plaintext or an error matching ErrDecryption, never partial output.
func (c *Codec) Decrypt(blob, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	if len(blob) < headerSize || !bytes.Equal(blob[:len(magic)], magic) {
		return nil, ErrCorruptData
	}

	v := Version(blob[len(magic)])
	aead, err := newAEAD(v, key)
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return nil, ErrCorruptData
		}
		return nil, ErrInvalidKey
	}

	if len(blob) < headerSize+aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorruptData
	}

	nonce := blob[headerSize : headerSize+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, blob[headerSize+aead.NonceSize():], blob[:headerSize])
	if err != nil {
		return nil, ErrInvalidToken
	}

	return plaintext, nil
}

// Encrypt seals with the default codec.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	return (&Codec{}).Encrypt(plaintext, key)
}

// Decrypt opens with the default codec.
func Decrypt(blob, key []byte) ([]byte, error) {
	return (&Codec{}).Decrypt(blob, key)
}

func newAEAD(v Version, key []byte) (cipher.AEAD, error) {
	switch v {
	case VersionAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case VersionXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// EncodeKey returns the text form stored in the users table.
func EncodeKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}

// DecodeKey parses the text form of a key.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(s)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
