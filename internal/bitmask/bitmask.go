package bitmask

import (
	"errors"
	"fmt"
)

// ErrInvalidDegree is returned for any degree outside {1,2,4,8}.
var ErrInvalidDegree = errors.New("degree value can be only 1/2/4/8")

// ValidateDegree checks that degree evenly divides a byte.
func ValidateDegree(degree int) error {
	switch degree {
	case 1, 2, 4, 8:
		return nil
	}
	return fmt.Errorf("%w: got %d", ErrInvalidDegree, degree)
}

// Masks creates the masks for taking bits from payload bytes and putting
// them into image bytes.
//
// textMask selects the top degree bits of a payload byte. imgMask clears the
// low degree bits of a pixel byte; its complement isolates them on decode.
func Masks(degree int) (textMask, imgMask byte, err error) {
	if err := ValidateDegree(degree); err != nil {
		return 0, 0, err
	}

	text := 0xFF << (8 - degree)
	text %= 256
	img := 0xFF >> degree
	img <<= degree

	return byte(text), byte(img), nil
}

// Capacity returns how many payload symbols an image of imageLen bytes can
// carry at the given degree. A payload of length P fits only when
// P < imageLen*degree/8 - headerSize.
func Capacity(imageLen, degree, headerSize int) int {
	if ValidateDegree(degree) != nil || imageLen <= 0 {
		return 0
	}

	// Largest integer strictly below imageLen*degree/8 - headerSize
	max := (imageLen*degree+7)/8 - headerSize - 1
	if max < 0 {
		return 0
	}
	return max
}

// Fits reports whether payloadLen symbols can be embedded.
func Fits(payloadLen, imageLen, degree, headerSize int) bool {
	if payloadLen < 0 || ValidateDegree(degree) != nil {
		return false
	}
	return payloadLen*8 < imageLen*degree-headerSize*8
}

// PixelBytes returns how many pixel bytes are consumed by payloadLen symbols.
func PixelBytes(payloadLen, degree int) int {
	return payloadLen * (8 / degree)
}
