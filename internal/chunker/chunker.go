package chunker

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ================================================================================
// DNS TXT chunking for stego images
//
// Each TXT string carries a self-describing chunk:
// [MAGIC(4)][MSGID(16)][SEQ(2)][TOTAL(2)][CRC32(4)][PAYLOAD]
// base32 encoded without padding. DNS is lossy and unordered, so every chunk
// names its message, its position and its own checksum.
// ================================================================================

const (
	// SAFE_CHUNK_SIZE keeps encoded chunks under the 255-byte TXT string limit
	SAFE_CHUNK_SIZE = 250

	// METADATA_OVERHEAD is the fixed chunk header size
	METADATA_OVERHEAD = 28

	// PAYLOAD_PER_CHUNK is the raw image data per chunk: base32 packs 5 bytes
	// into 8 characters, so 250 characters hold 156 bytes, minus the header
	PAYLOAD_PER_CHUNK = SAFE_CHUNK_SIZE*5/8 - METADATA_OVERHEAD

	// CHUNK_MAGIC identifies our chunk protocol version ("BMPC")
	CHUNK_MAGIC = 0x424D5043
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

var idCounter atomic.Uint64

// ChunkMetadata contains all information needed to reassemble a message
type ChunkMetadata struct {
	Magic       uint32
	MessageID   [16]byte
	Sequence    uint16 // 0-based
	TotalChunks uint16
	Checksum    uint32 // CRC32 (IEEE) of this chunk's payload
}

// Chunk represents a single DNS-ready fragment
type Chunk struct {
	Metadata ChunkMetadata
	Payload  []byte
	Encoded  string
}

// Message is a stego image split for transport
type Message struct {
	ID        [16]byte
	Data      []byte
	Chunks    []Chunk
	CreatedAt time.Time
}

// Label returns the DNS-safe message identifier
func (m *Message) Label() string {
	return hex.EncodeToString(m.ID[:8])
}

// Manifest renders "TOTAL:CRC32:TIMESTAMP" for the manifest TXT record
func (m *Message) Manifest() string {
	return fmt.Sprintf("%d:%08x:%d", len(m.Chunks), crc32.ChecksumIEEE(m.Data), m.CreatedAt.Unix())
}

// Manifest describes a published message
type Manifest struct {
	TotalChunks int
	Checksum    uint32
	Timestamp   time.Time
}

// ParseManifest parses the manifest TXT value
func ParseManifest(value string) (Manifest, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return Manifest{}, fmt.Errorf("invalid manifest %q", value)
	}

	total, err := strconv.Atoi(parts[0])
	if err != nil || total <= 0 || total > math.MaxUint16 {
		return Manifest{}, fmt.Errorf("invalid chunk count %q", parts[0])
	}
	sum, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return Manifest{}, fmt.Errorf("invalid checksum %q", parts[1])
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Manifest{}, fmt.Errorf("invalid timestamp %q", parts[2])
	}

	return Manifest{
		TotalChunks: total,
		Checksum:    uint32(sum),
		Timestamp:   time.Unix(ts, 0),
	}, nil
}

// Verify checks reassembled data against the manifest checksum
func (m Manifest) Verify(data []byte) error {
	if got := crc32.ChecksumIEEE(data); got != m.Checksum {
		return fmt.Errorf("message checksum mismatch: got %08x, want %08x", got, m.Checksum)
	}
	return nil
}

// ChunkingStats tracks performance metrics
type ChunkingStats struct {
	MessagesChunked  int
	TotalChunks      int
	TotalBytes       int
	LastChunkingTime time.Duration
}

// Chunker handles message fragmentation
type Chunker struct {
	payloadSize int
	stats       ChunkingStats
}

// NewChunker creates a chunker. A payloadSize of zero or one larger than
// PAYLOAD_PER_CHUNK selects PAYLOAD_PER_CHUNK.
func NewChunker(payloadSize int) *Chunker {
	if payloadSize <= 0 || payloadSize > PAYLOAD_PER_CHUNK {
		payloadSize = PAYLOAD_PER_CHUNK
	}
	return &Chunker{payloadSize: payloadSize}
}

// Split fragments data into DNS-ready chunks
func (c *Chunker) Split(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, errors.New("no data to chunk")
	}
	startTime := time.Now()

	totalChunks := (len(data) + c.payloadSize - 1) / c.payloadSize
	if totalChunks > math.MaxUint16 {
		return nil, fmt.Errorf("message too large: requires %d chunks (max %d)",
			totalChunks, math.MaxUint16)
	}

	msg := &Message{
		ID:        generateMessageID(data, startTime),
		Data:      data,
		Chunks:    make([]Chunk, 0, totalChunks),
		CreatedAt: startTime,
	}

	for i := 0; i < totalChunks; i++ {
		start := i * c.payloadSize
		end := min(start+c.payloadSize, len(data))
		payload := data[start:end]

		metadata := ChunkMetadata{
			Magic:       CHUNK_MAGIC,
			MessageID:   msg.ID,
			Sequence:    uint16(i),
			TotalChunks: uint16(totalChunks),
			Checksum:    crc32.ChecksumIEEE(payload),
		}

		msg.Chunks = append(msg.Chunks, Chunk{
			Metadata: metadata,
			Payload:  payload,
			Encoded:  encodeChunk(metadata, payload),
		})
	}

	c.stats.MessagesChunked++
	c.stats.TotalChunks += totalChunks
	c.stats.TotalBytes += len(data)
	c.stats.LastChunkingTime = time.Since(startTime)

	return msg, nil
}

// Stats returns chunking statistics
func (c *Chunker) Stats() ChunkingStats {
	return c.stats
}

func encodeChunk(metadata ChunkMetadata, payload []byte) string {
	raw := make([]byte, METADATA_OVERHEAD+len(payload))
	binary.BigEndian.PutUint32(raw[0:4], metadata.Magic)
	copy(raw[4:20], metadata.MessageID[:])
	binary.BigEndian.PutUint16(raw[20:22], metadata.Sequence)
	binary.BigEndian.PutUint16(raw[22:24], metadata.TotalChunks)
	binary.BigEndian.PutUint32(raw[24:28], metadata.Checksum)
	copy(raw[METADATA_OVERHEAD:], payload)

	return b32.EncodeToString(raw)
}

// Decode parses a TXT value back into a validated Chunk
func Decode(encoded string) (*Chunk, error) {
	raw, err := b32.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if len(raw) < METADATA_OVERHEAD {
		return nil, fmt.Errorf("chunk too small: %d bytes", len(raw))
	}

	var metadata ChunkMetadata
	metadata.Magic = binary.BigEndian.Uint32(raw[0:4])
	copy(metadata.MessageID[:], raw[4:20])
	metadata.Sequence = binary.BigEndian.Uint16(raw[20:22])
	metadata.TotalChunks = binary.BigEndian.Uint16(raw[22:24])
	metadata.Checksum = binary.BigEndian.Uint32(raw[24:28])

	chunk := &Chunk{
		Metadata: metadata,
		Payload:  raw[METADATA_OVERHEAD:],
		Encoded:  encoded,
	}
	if err := ValidateChunk(chunk); err != nil {
		return nil, err
	}

	return chunk, nil
}

// ValidateChunk performs comprehensive chunk validation
func ValidateChunk(chunk *Chunk) error {
	if chunk.Metadata.Magic != CHUNK_MAGIC {
		return fmt.Errorf("invalid magic number: %x", chunk.Metadata.Magic)
	}

	if calculated := crc32.ChecksumIEEE(chunk.Payload); calculated != chunk.Metadata.Checksum {
		return fmt.Errorf("checksum mismatch: expected %08x, got %08x",
			chunk.Metadata.Checksum, calculated)
	}

	if chunk.Metadata.Sequence >= chunk.Metadata.TotalChunks {
		return fmt.Errorf("sequence %d out of bounds (total: %d)",
			chunk.Metadata.Sequence, chunk.Metadata.TotalChunks)
	}

	if len(chunk.Payload) == 0 {
		return errors.New("empty payload")
	}
	if len(chunk.Payload) > PAYLOAD_PER_CHUNK {
		return fmt.Errorf("payload too large: %d > %d", len(chunk.Payload), PAYLOAD_PER_CHUNK)
	}

	return nil
}

// Reassemble reconstructs the original data from chunks in any order
func Reassemble(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks provided")
	}

	// Verify all chunks belong to same message
	messageID := chunks[0].Metadata.MessageID
	totalExpected := chunks[0].Metadata.TotalChunks

	for _, chunk := range chunks {
		if chunk.Metadata.MessageID != messageID {
			return nil, fmt.Errorf("mixed messages detected: %x vs %x",
				messageID[:8], chunk.Metadata.MessageID[:8])
		}
		if chunk.Metadata.TotalChunks != totalExpected {
			return nil, fmt.Errorf("inconsistent total chunks: %d vs %d",
				totalExpected, chunk.Metadata.TotalChunks)
		}
	}

	if len(chunks) != int(totalExpected) {
		return nil, fmt.Errorf("incomplete message: missing chunks %v", findMissingChunks(chunks, totalExpected))
	}

	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Metadata.Sequence < sorted[j].Metadata.Sequence
	})

	var reassembled []byte
	for i, chunk := range sorted {
		if chunk.Metadata.Sequence != uint16(i) {
			return nil, fmt.Errorf("sequence error at position %d", i)
		}
		if crc32.ChecksumIEEE(chunk.Payload) != chunk.Metadata.Checksum {
			return nil, fmt.Errorf("checksum failed for chunk %d", i)
		}
		reassembled = append(reassembled, chunk.Payload...)
	}

	return reassembled, nil
}

// generateMessageID hashes data with the creation time and a process-wide
// counter so that publishing the same image twice yields distinct IDs
func generateMessageID(data []byte, at time.Time) [16]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], idCounter.Add(1))

	h := sha256.New()
	h.Write(data)
	h.Write([]byte(strconv.FormatInt(at.UnixNano(), 10)))
	h.Write(seq[:])

	var id [16]byte
	copy(id[:], h.Sum(nil))
	return id
}

func findMissingChunks(chunks []Chunk, total uint16) []uint16 {
	present := make(map[uint16]bool)
	for _, chunk := range chunks {
		present[chunk.Metadata.Sequence] = true
	}

	var missing []uint16
	for i := uint16(0); i < total; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	return missing
}
