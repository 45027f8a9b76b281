package scrypto

import (
	"bytes"
	"fmt"
)

// pkcs7Pad pads data to a multiple of blockSize. A full block of padding is
// added when data is already aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	paddingLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data), len(data)+paddingLen)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(paddingLen)}, paddingLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length %d", len(data))
	}

	paddingLen := int(data[len(data)-1])
	if paddingLen == 0 || paddingLen > blockSize {
		return nil, fmt.Errorf("invalid padding length")
	}

	// Verify padding
	for i := len(data) - paddingLen; i < len(data); i++ {
		if data[i] != byte(paddingLen) {
			return nil, fmt.Errorf("invalid padding")
		}
	}

	return data[:len(data)-paddingLen], nil
}
