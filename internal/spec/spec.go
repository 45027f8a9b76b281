package spec

// Steganography constants
const (
	HEADER_SIZE      = 54 // BMP file header + BITMAPINFOHEADER, copied verbatim
	BITS_PER_BYTE    = 8  // Standard byte size
	LENGTH_PREFIX    = 4  // Big-endian length in front of framed payloads
	DEFAULT_DEGREE   = 4  // Payload bits per pixel byte
	DEFAULT_WIDTH    = 256
	DEFAULT_HEIGHT   = 256
	CHANNELS         = 3 // BGR channels of a 24-bit pixel
	DEFAULT_FRAMED   = true
	DEFAULT_TXT_TTL  = 300 // Seconds
	DEFAULT_DNS_PORT = ":5353"
)

// Security constants
const (
	SALT_SIZE    = 16      // Salt for PBKDF2
	IV_SIZE      = 16      // CBC initialization vector
	KEY_SIZE     = 16      // AES-128 key size
	BLOCK_SIZE   = 16      // AES block size
	PBKDF2_ITERS = 1000000 // PBKDF2 iterations (adjustable for security/speed)

	// Minimum decoded blob: salt and IV with no ciphertext
	MIN_BLOB_SIZE = SALT_SIZE + IV_SIZE
)

// Degrees lists every supported embedding density.
var Degrees = []int{1, 2, 4, 8}
