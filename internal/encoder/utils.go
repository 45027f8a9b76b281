package encoder

import (
	"fmt"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/spec"
)

// Report summarises how a payload uses an image
type Report struct {
	ImageBytes  int
	PayloadLen  int
	Degree      int
	Capacity    int // Maximum embeddable symbols
	PixelBytes  int // Pixel bytes rewritten by the payload
	Utilization float64
}

// CapacityReport computes steganography parameters for a payload
func CapacityReport(imageLen, payloadLen, degree int) Report {
	r := Report{
		ImageBytes: imageLen,
		PayloadLen: payloadLen,
		Degree:     degree,
		Capacity:   bitmask.Capacity(imageLen, degree, spec.HEADER_SIZE),
	}
	if bitmask.ValidateDegree(degree) == nil {
		r.PixelBytes = bitmask.PixelBytes(payloadLen, degree)
	}
	if r.Capacity > 0 {
		r.Utilization = float64(payloadLen) * 100 / float64(r.Capacity)
	}
	return r
}

// Fits reports whether the payload respects the capacity bound
func (r Report) Fits() bool {
	return bitmask.Fits(r.PayloadLen, r.ImageBytes, r.Degree, spec.HEADER_SIZE)
}

// String renders the report the way the CLI prints it
func (r Report) String() string {
	return fmt.Sprintf("📊 Steganography Parameters:\n"+
		"   Image size: %d bytes\n"+
		"   Payload size: %d symbols\n"+
		"   Degree: %d bits per byte\n"+
		"   Pixel bytes used: %d\n"+
		"   Total capacity: %d symbols\n"+
		"   Utilization: %.1f%%",
		r.ImageBytes, r.PayloadLen, r.Degree, r.PixelBytes, r.Capacity, r.Utilization)
}
