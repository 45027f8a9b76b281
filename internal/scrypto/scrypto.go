package scrypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"

	"github.com/faanross/simulacra_bmp/internal/spec"
	"golang.org/x/crypto/pbkdf2"
)

// Supported PBKDF2 pseudo-random functions
const (
	HASH_SHA1   = "sha1"
	HASH_SHA256 = "sha256"
)

// KDFConfig tunes key derivation without touching the envelope format
type KDFConfig struct {
	Iterations int    // PBKDF2 rounds
	KeySize    int    // 16, 24 or 32 bytes (AES-128/192/256)
	Hash       string // HMAC hash: sha1 or sha256
}

// DefaultKDFConfig matches blobs produced by the original Python tool:
// PBKDF2-HMAC-SHA1, 1,000,000 rounds, 16-byte key.
func DefaultKDFConfig() KDFConfig {
	return KDFConfig{
		Iterations: spec.PBKDF2_ITERS,
		KeySize:    spec.KEY_SIZE,
		Hash:       HASH_SHA1,
	}
}

// Validate reports configuration errors before any key material is derived
func (c KDFConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("pbkdf2 iterations must be positive, got %d", c.Iterations)
	}
	switch c.KeySize {
	case 16, 24, 32:
	default:
		return fmt.Errorf("key size must be 16, 24 or 32 bytes, got %d", c.KeySize)
	}
	if _, err := c.hashFunc(); err != nil {
		return err
	}
	return nil
}

func (c KDFConfig) hashFunc() (func() hash.Hash, error) {
	switch strings.ToLower(c.Hash) {
	case HASH_SHA1, "":
		return sha1.New, nil
	case HASH_SHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("unsupported kdf hash %q", c.Hash)
	}
}

// String describes the algorithm for CLI output
func (c KDFConfig) String() string {
	h := strings.ToUpper(c.Hash)
	if h == "" {
		h = "SHA1"
	}
	return fmt.Sprintf("AES-%d-CBC + PBKDF2-%s-%d", c.KeySize*8, h, c.Iterations)
}

// DeriveKey generates encryption key from password using PBKDF2
func DeriveKey(password, salt []byte, cfg KDFConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, _ := cfg.hashFunc()

	return pbkdf2.Key(password, salt, cfg.Iterations, cfg.KeySize, h), nil
}
