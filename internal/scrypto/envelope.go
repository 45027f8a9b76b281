package scrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/faanross/simulacra_bmp/internal/spec"
)

var (
	// ErrEncryption wraps failures of the underlying cipher primitives
	ErrEncryption = errors.New("encryption failed")
	// ErrMalformedBlob means the blob is not base64 or is shorter than salt+iv
	ErrMalformedBlob = errors.New("malformed blob")
	// ErrDecryption means wrong password or corrupted ciphertext
	ErrDecryption = errors.New("decryption failed - wrong password or corrupted data")
)

// randReader is swapped in tests that need to observe salt/iv generation
var randReader io.Reader = rand.Reader

// Seal encrypts plaintext with a password-derived key.
//
// Blob layout before base64: [Salt(16)][IV(16)][Ciphertext(PKCS7 padded)]
// Every call draws a fresh salt and IV.
func Seal(plaintext string, password []byte, cfg KDFConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Step 1: Generate random salt
	salt := make([]byte, spec.SALT_SIZE)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return nil, fmt.Errorf("%w: salt generation: %v", ErrEncryption, err)
	}

	// Step 2: Derive key from password
	key, err := DeriveKey(password, salt, cfg)
	if err != nil {
		return nil, err
	}

	// Step 3: Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher creation: %v", ErrEncryption, err)
	}

	// Step 4: Generate IV
	iv := make([]byte, spec.IV_SIZE)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, fmt.Errorf("%w: iv generation: %v", ErrEncryption, err)
	}

	// Step 5: Pad and encrypt
	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())

	raw := make([]byte, spec.MIN_BLOB_SIZE+len(padded))
	copy(raw, salt)
	copy(raw[spec.SALT_SIZE:], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(raw[spec.MIN_BLOB_SIZE:], padded)

	blob := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(blob, raw)
	return blob, nil
}

// Open reverses Seal. It never returns partially decrypted text.
func Open(blob []byte, password []byte, cfg KDFConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(raw, blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	raw = raw[:n]

	if len(raw) < spec.MIN_BLOB_SIZE {
		return "", fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedBlob, len(raw), spec.MIN_BLOB_SIZE)
	}

	salt := raw[:spec.SALT_SIZE]
	iv := raw[spec.SALT_SIZE:spec.MIN_BLOB_SIZE]
	ciphertext := raw[spec.MIN_BLOB_SIZE:]

	if len(ciphertext) == 0 || len(ciphertext)%spec.BLOCK_SIZE != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a block multiple", ErrDecryption, len(ciphertext))
	}

	key, err := DeriveKey(password, salt, cfg)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: cipher creation: %v", ErrDecryption, err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, block.BlockSize())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if !utf8.Valid(unpadded) {
		return "", fmt.Errorf("%w: plaintext is not valid text", ErrDecryption)
	}

	return string(unpadded), nil
}

// SealedLen returns the exact blob length Seal produces for a plaintext of
// plaintextLen bytes.
func SealedLen(plaintextLen int) int {
	padded := (plaintextLen/spec.BLOCK_SIZE + 1) * spec.BLOCK_SIZE
	return base64.StdEncoding.EncodedLen(spec.MIN_BLOB_SIZE + padded)
}

// Envelope binds Seal/Open to an injected password source
type Envelope struct {
	secrets SecretProvider
	cfg     KDFConfig
}

// NewEnvelope creates an envelope that asks secrets for the password on
// every call.
func NewEnvelope(secrets SecretProvider, cfg KDFConfig) *Envelope {
	return &Envelope{
		secrets: secrets,
		cfg:     cfg,
	}
}

// Config returns the key derivation settings
func (e *Envelope) Config() KDFConfig {
	return e.cfg
}

// Seal encrypts plaintext with the provider's password
func (e *Envelope) Seal(plaintext string) ([]byte, error) {
	password, err := e.secrets.Secret()
	if err != nil {
		return nil, fmt.Errorf("password retrieval failed: %w", err)
	}
	return Seal(plaintext, password, e.cfg)
}

// Open decrypts blob with the provider's password
func (e *Envelope) Open(blob []byte) (string, error) {
	password, err := e.secrets.Secret()
	if err != nil {
		return "", fmt.Errorf("password retrieval failed: %w", err)
	}
	return Open(blob, password, e.cfg)
}
