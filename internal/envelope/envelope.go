// Package envelope implements the encrypted payload wire format:
//
//	{ "_encrypted": true, "iv": "<24 hex chars>", "data": "<base64>" }
//
// data is the AES-256-GCM ciphertext immediately followed by the 16-byte
// authentication tag. The key is the 64-char hex SHA-256 digest of the
// owner's password.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrInvalidKey means the key is not 64 hex characters.
	ErrInvalidKey = errors.New("envelope: invalid key")
	// ErrMalformed means the envelope or the decrypted payload has the wrong shape.
	ErrMalformed = errors.New("envelope: malformed")
	// ErrDecryptionFailed means the tag did not verify: wrong key, wrong IV or tampered data.
	ErrDecryptionFailed = errors.New("envelope: decryption failed")
	// ErrMissingKey means no key was available to open the envelope.
	ErrMissingKey = errors.New("envelope: missing key")
)

// Envelope is the encrypted payload as it appears on the wire.
type Envelope struct {
	Encrypted bool   `json:"_encrypted"`
	IV        string `json:"iv"`
	Data      string `json:"data"`
}

func (*Envelope) isResource() {}

// Seal encrypts plaintext under keyHex with a fresh random IV.
func Seal(plaintext []byte, keyHex string) (*Envelope, error) {
	aead, err := newAEAD(keyHex)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("envelope: generate iv: %w", err)
	}

	// Seal appends the tag to the ciphertext.
	sealed := aead.Seal(nil, iv, plaintext, nil)

	return &Envelope{
		Encrypted: true,
		IV:        hex.EncodeToString(iv),
		Data:      base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Encrypt serializes v as JSON and seals it.
func Encrypt(v any, keyHex string) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload: %w", err)
	}
	return Seal(plaintext, keyHex)
}

// Decrypt opens env with keyHex and returns the JSON payload.
func Decrypt(env *Envelope, keyHex string) (json.RawMessage, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil || len(iv) != NonceSize {
		return nil, fmt.Errorf("%w: iv must be %d hex-encoded bytes", ErrMalformed, NonceSize)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data is not base64", ErrMalformed)
	}

	aead, err := newAEAD(keyHex)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("%w: payload is not JSON", ErrMalformed)
	}
	return json.RawMessage(plaintext), nil
}

// DecryptInto opens env and unmarshals the payload into v.
func DecryptInto(env *Envelope, keyHex string, v any) error {
	raw, err := Decrypt(env, keyHex)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (e *Envelope) validate() error {
	if e == nil || !e.Encrypted || e.IV == "" || e.Data == "" {
		return fmt.Errorf("%w: not an encrypted envelope", ErrMalformed)
	}
	return nil
}

func newAEAD(keyHex string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: create AEAD: %w", err)
	}
	return aead, nil
}
