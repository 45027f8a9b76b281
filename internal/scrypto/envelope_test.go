package scrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// Low iteration count keeps the suite fast; the format is unchanged.
var testKDF = KDFConfig{Iterations: 1000, KeySize: 16, Hash: HASH_SHA1}

func TestSealOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"short", "HELLO", "pw123"},
		{"empty", "", "pw123"},
		{"block aligned", "0123456789ABCDEF", "secret"},
		{"unicode", "Привет, мир! 你好 🌍", "pässwörd"},
		{"multi line", "line one\nline two\r\nline three\n", "p"},
		{"long", strings.Repeat("The quick brown fox. ", 200), "long password with spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Seal(tt.plaintext, []byte(tt.password), testKDF)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if len(blob) != SealedLen(len(tt.plaintext)) {
				t.Errorf("blob length %d, SealedLen says %d", len(blob), SealedLen(len(tt.plaintext)))
			}

			got, err := Open(blob, []byte(tt.password), testKDF)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if got != tt.plaintext {
				t.Fatalf("round-trip mismatch: got %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestSealProducesFreshBlobs(t *testing.T) {
	first, err := Seal("HELLO", []byte("pw123"), testKDF)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	second, err := Seal("HELLO", []byte("pw123"), testKDF)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if bytes.Equal(first, second) {
		t.Fatal("two seals of the same message produced identical blobs")
	}

	rawFirst, _ := base64.StdEncoding.DecodeString(string(first))
	rawSecond, _ := base64.StdEncoding.DecodeString(string(second))
	if bytes.Equal(rawFirst[:16], rawSecond[:16]) {
		t.Error("salt reused across seals")
	}
	if bytes.Equal(rawFirst[16:32], rawSecond[16:32]) {
		t.Error("iv reused across seals")
	}

	for _, blob := range [][]byte{first, second} {
		got, err := Open(blob, []byte("pw123"), testKDF)
		if err != nil || got != "HELLO" {
			t.Fatalf("Open = %q, %v", got, err)
		}
	}
}

func TestBlobLayout(t *testing.T) {
	blob, err := Seal("HELLO", []byte("pw123"), testKDF)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// 16 salt + 16 iv + one padded block = 48 bytes = 64 base64 chars
	if len(blob) != 64 {
		t.Fatalf("blob length = %d, want 64", len(blob))
	}

	raw, err := base64.StdEncoding.DecodeString(string(blob))
	if err != nil {
		t.Fatalf("blob is not standard base64: %v", err)
	}

	key, err := DeriveKey([]byte("pw123"), raw[:16], testKDF)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	block, _ := aes.NewCipher(key)
	plain := make([]byte, 16)
	cipher.NewCBCDecrypter(block, raw[16:32]).CryptBlocks(plain, raw[32:])

	want := append([]byte("HELLO"), bytes.Repeat([]byte{11}, 11)...)
	if !bytes.Equal(plain, want) {
		t.Fatalf("decrypted block = %x, want %x", plain, want)
	}
}

func TestOpenWrongPassword(t *testing.T) {
	for i := 0; i < 8; i++ {
		blob, err := Seal("attack at dawn", []byte("correct horse"), testKDF)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}

		got, err := Open(blob, []byte("battery staple"), testKDF)
		if !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %q, %v", got, err)
		}
		if got != "" {
			t.Fatalf("partial plaintext returned: %q", got)
		}
	}
}

func TestOpenCorruptedPadding(t *testing.T) {
	blob, err := Seal("HELLO", []byte("pw123"), testKDF)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(string(blob))

	// Flipping the last IV byte flips the last padding byte of the only block
	raw[31] ^= 0x01
	tampered := []byte(base64.StdEncoding.EncodeToString(raw))

	if _, err := Open(tampered, []byte("pw123"), testKDF); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"not base64", []byte("!!!not-base64!!!"), ErrMalformedBlob},
		{"shorter than salt and iv", []byte(base64.StdEncoding.EncodeToString(make([]byte, 20))), ErrMalformedBlob},
		{"empty", nil, ErrMalformedBlob},
		{"no ciphertext", []byte(base64.StdEncoding.EncodeToString(make([]byte, 32))), ErrDecryption},
		{"partial block", []byte(base64.StdEncoding.EncodeToString(make([]byte, 40))), ErrDecryption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.blob, []byte("pw"), testKDF)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestSealRandomFailure(t *testing.T) {
	saved := randReader
	randReader = failingReader{}
	defer func() { randReader = saved }()

	if _, err := Seal("HELLO", []byte("pw"), testKDF); !errors.Is(err, ErrEncryption) {
		t.Fatalf("expected ErrEncryption, got %v", err)
	}
}

func TestSealedLen(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 64},
		{5, 64},
		{15, 64},
		{16, 88}, // full padding block
		{31, 88},
		{32, 108},
	}
	for _, tt := range tests {
		if got := SealedLen(tt.n); got != tt.want {
			t.Errorf("SealedLen(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestDeriveKeyKnownVectors(t *testing.T) {
	// RFC 6070 PBKDF2-HMAC-SHA1 vectors, truncated to 16 bytes
	tests := []struct {
		iterations int
		want       string
	}{
		{1, "0c60c80f961f0e71f3a9b524af601206"},
		{2, "ea6c014dc72d6f8ccd1ed92ace1d41f0"},
	}

	for _, tt := range tests {
		cfg := KDFConfig{Iterations: tt.iterations, KeySize: 16, Hash: HASH_SHA1}
		key, err := DeriveKey([]byte("password"), []byte("salt"), cfg)
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		if got := hex.EncodeToString(key); got != tt.want {
			t.Errorf("iterations=%d: got %s, want %s", tt.iterations, got, tt.want)
		}
	}
}

func TestKDFConfigValidate(t *testing.T) {
	if err := DefaultKDFConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if DefaultKDFConfig().Iterations != 1000000 || DefaultKDFConfig().KeySize != 16 {
		t.Fatalf("unexpected defaults: %+v", DefaultKDFConfig())
	}

	bad := []KDFConfig{
		{Iterations: 0, KeySize: 16, Hash: HASH_SHA1},
		{Iterations: 10, KeySize: 20, Hash: HASH_SHA1},
		{Iterations: 10, KeySize: 16, Hash: "md5"},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", cfg)
		}
		if _, err := Seal("x", []byte("pw"), cfg); err == nil {
			t.Errorf("Seal accepted invalid config %+v", cfg)
		}
	}
}

func TestSHA256AndLargerKeys(t *testing.T) {
	cfg := KDFConfig{Iterations: 500, KeySize: 32, Hash: HASH_SHA256}
	blob, err := Seal("configurable", []byte("pw"), cfg)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	got, err := Open(blob, []byte("pw"), cfg)
	if err != nil || got != "configurable" {
		t.Fatalf("Open = %q, %v", got, err)
	}

	// A blob sealed with one KDF must not open under another
	if _, err := Open(blob, []byte("pw"), testKDF); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption across kdf configs, got %v", err)
	}
}
