// Package cover generates and inspects 24-bit BMP cover images.
//
// Inspection is informational only; the embedding codec never parses the
// header and simply skips the first spec.HEADER_SIZE bytes.
package cover

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/spec"
	"golang.org/x/image/bmp"
)

// Generate creates a 24-bit BMP filled with noise read from src. A nil src
// uses crypto/rand so the low bits look like the payload they will carry.
func Generate(width, height int, src io.Reader) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if src == nil {
		src = rand.Reader
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	row := make([]byte, width*spec.CHANNELS)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(src, row); err != nil {
			return nil, fmt.Errorf("noise generation failed: %w", err)
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: row[x*3],
				G: row[x*3+1],
				B: row[x*3+2],
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("bmp encoding failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Info describes a BMP container
type Info struct {
	Width        int
	Height       int
	FileSize     int
	PixelOffset  int
	BitsPerPixel int
}

// ErrNotBMP is returned when the data does not start with a BMP signature
var ErrNotBMP = errors.New("not a BMP image")

// Inspect reads the BMP header fields
func Inspect(data []byte) (Info, error) {
	if len(data) < spec.HEADER_SIZE || data[0] != 'B' || data[1] != 'M' {
		return Info{}, ErrNotBMP
	}

	cfg, err := bmp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotBMP, err)
	}

	return Info{
		Width:        cfg.Width,
		Height:       cfg.Height,
		FileSize:     len(data),
		PixelOffset:  int(binary.LittleEndian.Uint32(data[10:14])),
		BitsPerPixel: int(binary.LittleEndian.Uint16(data[28:30])),
	}, nil
}

// Standard reports whether the image has the layout the codec assumes:
// 24 bits per pixel with pixel data right after a 54-byte header.
func (i Info) Standard() bool {
	return i.BitsPerPixel == 24 && i.PixelOffset == spec.HEADER_SIZE
}

// Capacities returns the maximum payload symbols per supported degree
func (i Info) Capacities() map[int]int {
	caps := make(map[int]int, len(spec.Degrees))
	for _, d := range spec.Degrees {
		caps[d] = bitmask.Capacity(i.FileSize, d, spec.HEADER_SIZE)
	}
	return caps
}
