package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/spec"
)

// ErrReadTooLarge means more symbols were requested than the image can hold
var ErrReadTooLarge = errors.New("too much symbols to read")

// Extract takes count symbols from image and retrieves the hidden bytes at
// the given degree. The count is not stored in the stream; callers must know
// the exact length that was embedded.
func Extract(image []byte, count, degree int) ([]byte, error) {
	_, imgMask, err := bitmask.Masks(degree)
	if err != nil {
		return nil, err
	}

	if count < 0 || !bitmask.Fits(count, len(image), degree, spec.HEADER_SIZE) {
		return nil, fmt.Errorf("%w: %d symbols, capacity %d at degree %d",
			ErrReadTooLarge, count, bitmask.Capacity(len(image), degree, spec.HEADER_SIZE), degree)
	}

	return extractAt(image, spec.HEADER_SIZE, count, degree, ^imgMask), nil
}

// ExtractFramed reads a length-prefixed payload written by
// encoder.EmbedFramed.
func ExtractFramed(image []byte, degree int) ([]byte, error) {
	_, imgMask, err := bitmask.Masks(degree)
	if err != nil {
		return nil, err
	}

	if !bitmask.Fits(spec.LENGTH_PREFIX, len(image), degree, spec.HEADER_SIZE) {
		return nil, fmt.Errorf("%w: image too small for a length prefix", ErrReadTooLarge)
	}

	prefix := extractAt(image, spec.HEADER_SIZE, spec.LENGTH_PREFIX, degree, ^imgMask)
	payloadLen := binary.BigEndian.Uint32(prefix)

	// Validate payload length
	capacity := bitmask.Capacity(len(image), degree, spec.HEADER_SIZE)
	if uint64(payloadLen)+spec.LENGTH_PREFIX > uint64(capacity) {
		return nil, fmt.Errorf("%w: frame claims %d symbols, capacity %d",
			ErrReadTooLarge, payloadLen, capacity-spec.LENGTH_PREFIX)
	}

	offset := spec.HEADER_SIZE + bitmask.PixelBytes(spec.LENGTH_PREFIX, degree)
	return extractAt(image, offset, int(payloadLen), degree, ^imgMask), nil
}

// extractAt rebuilds count bytes starting at pixel offset. lowMask selects
// the payload bits of each pixel byte.
func extractAt(image []byte, offset, count, degree int, lowMask byte) []byte {
	out := make([]byte, count)
	pos := offset

	for i := range out {
		var symbol byte
		for n := 0; n < spec.BITS_PER_BYTE; n += degree {
			symbol <<= degree
			symbol |= image[pos] & lowMask
			pos++
		}
		out[i] = symbol
	}

	return out
}
