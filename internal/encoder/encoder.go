package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/spec"
)

// ErrPayloadTooLarge means the payload exceeds the image capacity bound
var ErrPayloadTooLarge = errors.New("too long text")

// Embed hides payload in the low degree bits of the pixel bytes of image.
//
// The first spec.HEADER_SIZE bytes are copied verbatim. Each payload byte
// is spread over 8/degree consecutive pixel bytes, most significant chunk
// first. The output always has the same length as image.
func Embed(image, payload []byte, degree int) ([]byte, error) {
	textMask, imgMask, err := bitmask.Masks(degree)
	if err != nil {
		return nil, err
	}

	if !bitmask.Fits(len(payload), len(image), degree, spec.HEADER_SIZE) {
		return nil, fmt.Errorf("%w: %d symbols, capacity %d at degree %d",
			ErrPayloadTooLarge, len(payload), bitmask.Capacity(len(image), degree, spec.HEADER_SIZE), degree)
	}

	out := make([]byte, len(image))
	copy(out, image[:spec.HEADER_SIZE])

	pos := spec.HEADER_SIZE
	for _, symbol := range payload {
		for n := 0; n < spec.BITS_PER_BYTE; n += degree {
			bits := (symbol & textMask) >> (8 - degree)
			out[pos] = image[pos]&imgMask | bits
			symbol <<= degree
			pos++
		}
	}

	// Untouched tail carries no payload
	copy(out[pos:], image[pos:])

	return out, nil
}

// EmbedFramed embeds a 4-byte big-endian length prefix followed by payload,
// so the decoder does not need the symbol count out of band.
func EmbedFramed(image, payload []byte, degree int) ([]byte, error) {
	if err := bitmask.ValidateDegree(degree); err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d symbols exceeds frame limit", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, spec.LENGTH_PREFIX+len(payload))
	binary.BigEndian.PutUint32(frame[:spec.LENGTH_PREFIX], uint32(len(payload)))
	copy(frame[spec.LENGTH_PREFIX:], payload)

	return Embed(image, frame, degree)
}
