package stego

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/decoder"
	"github.com/faanross/simulacra_bmp/internal/encoder"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/spec"
)

// Options controls how payloads are laid out in the image
type Options struct {
	Degree int
	Framed bool        // Prefix the blob with its length
	Logger *log.Logger // Nil discards progress output
}

// Stego wires the cipher envelope around the bit codec
type Stego struct {
	env  *scrypto.Envelope
	opts Options
	log  *log.Logger
}

// HideResult describes a completed embed
type HideResult struct {
	Image   []byte
	BlobLen int // Symbols a raw-mode decoder must be told to read
	Report  encoder.Report
}

// New creates an orchestrator
func New(env *scrypto.Envelope, opts Options) *Stego {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Stego{
		env:  env,
		opts: opts,
		log:  logger,
	}
}

// Hide seals message and embeds the blob into cover
func (s *Stego) Hide(cover []byte, message string) (*HideResult, error) {
	if err := bitmask.ValidateDegree(s.opts.Degree); err != nil {
		return nil, err
	}

	// Reject oversized messages before paying for key derivation
	symbols := s.symbolsFor(scrypto.SealedLen(len(message)))
	report := encoder.CapacityReport(len(cover), symbols, s.opts.Degree)
	if !report.Fits() {
		return nil, fmt.Errorf("%w: %d symbols needed, capacity %d at degree %d",
			encoder.ErrPayloadTooLarge, symbols, report.Capacity, s.opts.Degree)
	}

	s.log.Printf("🔐 Sealing %d bytes (%s)", len(message), s.env.Config())
	blob, err := s.env.Seal(message)
	if err != nil {
		return nil, err
	}

	var out []byte
	if s.opts.Framed {
		out, err = encoder.EmbedFramed(cover, blob, s.opts.Degree)
	} else {
		out, err = encoder.Embed(cover, blob, s.opts.Degree)
	}
	if err != nil {
		return nil, err
	}

	report = encoder.CapacityReport(len(cover), s.symbolsFor(len(blob)), s.opts.Degree)
	s.log.Printf("🎨 Embedded %d symbols into %d pixel bytes (%.1f%% of capacity)",
		report.PayloadLen, report.PixelBytes, report.Utilization)

	return &HideResult{
		Image:   out,
		BlobLen: len(blob),
		Report:  report,
	}, nil
}

// Reveal extracts a length-prefixed blob and opens it
func (s *Stego) Reveal(img []byte) (string, error) {
	blob, err := decoder.ExtractFramed(img, s.opts.Degree)
	if err != nil {
		return "", err
	}
	s.log.Printf("🔍 Extracted framed blob of %d symbols", len(blob))
	return s.env.Open(blob)
}

// RevealCount extracts exactly count symbols and opens them
func (s *Stego) RevealCount(img []byte, count int) (string, error) {
	blob, err := decoder.Extract(img, count, s.opts.Degree)
	if err != nil {
		return "", err
	}
	s.log.Printf("🔍 Extracted %d symbols", len(blob))
	return s.env.Open(blob)
}

// HideFile reads a cover image, embeds message and writes outPath. The
// output only appears once it is complete.
func (s *Stego) HideFile(coverPath, outPath, message string) (*HideResult, error) {
	if err := bitmask.ValidateDegree(s.opts.Degree); err != nil {
		return nil, err
	}

	cover, err := os.ReadFile(coverPath)
	if err != nil {
		return nil, fmt.Errorf("reading cover image: %w", err)
	}

	result, err := s.Hide(cover, message)
	if err != nil {
		return nil, err
	}

	if err := WriteFileAtomic(outPath, result.Image, 0644); err != nil {
		return nil, err
	}
	s.log.Printf("💾 Wrote %s (%d bytes)", outPath, len(result.Image))

	return result, nil
}

// RevealFile reads an image and recovers its message. A count of zero or
// less selects framed mode.
func (s *Stego) RevealFile(path string, count int) (string, error) {
	if err := bitmask.ValidateDegree(s.opts.Degree); err != nil {
		return "", err
	}

	img, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading stego image: %w", err)
	}

	if count <= 0 {
		return s.Reveal(img)
	}
	return s.RevealCount(img, count)
}

func (s *Stego) symbolsFor(blobLen int) int {
	if s.opts.Framed {
		return blobLen + spec.LENGTH_PREFIX
	}
	return blobLen
}

// WriteFileAtomic writes data to a temp file next to path, then renames it
// into place. On failure path is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ErrNoMatch is returned when no candidate password opens the blob
var ErrNoMatch = errors.New("all passwords failed")

// TryPasswords attempts decryption with multiple passwords. It returns the
// plaintext and the index of the password that worked. A count of zero or
// less selects framed mode.
func TryPasswords(img []byte, count int, passwords []string, opts Options, kdf scrypto.KDFConfig) (string, int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var blob []byte
	var err error
	if count <= 0 {
		blob, err = decoder.ExtractFramed(img, opts.Degree)
	} else {
		blob, err = decoder.Extract(img, count, opts.Degree)
	}
	if err != nil {
		return "", -1, fmt.Errorf("extraction failed: %w", err)
	}

	logger.Printf("🔑 Trying %d passwords", len(passwords))
	for i, pass := range passwords {
		message, err := scrypto.Open(blob, []byte(pass), kdf)
		if err != nil {
			if errors.Is(err, scrypto.ErrDecryption) {
				logger.Printf("   Attempt %d/%d: ❌ Wrong password", i+1, len(passwords))
				continue
			}
			// Malformed blobs fail the same way for every password
			return "", -1, err
		}

		logger.Printf("   Attempt %d/%d: ✅ SUCCESS", i+1, len(passwords))
		return message, i, nil
	}

	return "", -1, ErrNoMatch
}
