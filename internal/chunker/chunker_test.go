package chunker

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func sampleImage(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(data)
	return data
}

func TestSplitReassemble(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantChunks int
	}{
		{"single byte", 1, 1},
		{"exactly one chunk", PAYLOAD_PER_CHUNK, 1},
		{"one over", PAYLOAD_PER_CHUNK + 1, 2},
		{"small bmp", 54 + 16*16*3, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sampleImage(tt.size)
			msg, err := NewChunker(0).Split(data)
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}
			if len(msg.Chunks) != tt.wantChunks {
				t.Fatalf("chunks = %d, want %d", len(msg.Chunks), tt.wantChunks)
			}

			for _, c := range msg.Chunks {
				if len(c.Encoded) > SAFE_CHUNK_SIZE {
					t.Fatalf("chunk %d encodes to %d chars", c.Metadata.Sequence, len(c.Encoded))
				}
			}

			got, err := Reassemble(msg.Chunks)
			if err != nil {
				t.Fatalf("Reassemble failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatal("reassembled data differs")
			}
		})
	}
}

func TestPayloadPerChunk(t *testing.T) {
	if PAYLOAD_PER_CHUNK != 128 {
		t.Fatalf("PAYLOAD_PER_CHUNK = %d, want 128", PAYLOAD_PER_CHUNK)
	}
}

func TestDecodeOutOfOrder(t *testing.T) {
	data := sampleImage(1000)
	msg, err := NewChunker(100).Split(data)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	// Decode from the wire form in reverse order
	var decoded []Chunk
	for i := len(msg.Chunks) - 1; i >= 0; i-- {
		c, err := Decode(msg.Chunks[i].Encoded)
		if err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		decoded = append(decoded, *c)
	}

	got, err := Reassemble(decoded)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled data differs")
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	msg, err := NewChunker(0).Split(sampleImage(300))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	encoded := msg.Chunks[0].Encoded

	// Flip a character in the payload region
	corrupted := []byte(encoded)
	i := len(corrupted) - 3
	if corrupted[i] == 'A' {
		corrupted[i] = 'B'
	} else {
		corrupted[i] = 'A'
	}

	tests := []struct {
		name    string
		encoded string
	}{
		{"payload flipped", string(corrupted)},
		{"not base32", "!!!!"},
		{"too short", b32.EncodeToString([]byte("short"))},
		{"bad magic", b32.EncodeToString(make([]byte, METADATA_OVERHEAD+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.encoded); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReassembleErrors(t *testing.T) {
	c := NewChunker(50)
	a, _ := c.Split(sampleImage(200))
	b, _ := c.Split(sampleImage(200))

	if _, err := Reassemble(nil); err == nil {
		t.Error("expected error for no chunks")
	}

	if _, err := Reassemble(a.Chunks[1:]); err == nil || !strings.Contains(err.Error(), "missing chunks [0]") {
		t.Errorf("expected missing chunk error, got %v", err)
	}

	mixed := append([]Chunk{}, a.Chunks[:2]...)
	mixed = append(mixed, b.Chunks[2:]...)
	if _, err := Reassemble(mixed); err == nil || !strings.Contains(err.Error(), "mixed messages") {
		t.Errorf("expected mixed message error, got %v", err)
	}

	dup := append([]Chunk{}, a.Chunks...)
	dup[1] = dup[0]
	if _, err := Reassemble(dup); err == nil {
		t.Error("expected sequence error for duplicated chunk")
	}
}

func TestSplitEmpty(t *testing.T) {
	if _, err := NewChunker(0).Split(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestMessageIDsDiffer(t *testing.T) {
	data := sampleImage(100)
	c := NewChunker(0)
	a, _ := c.Split(data)
	b, _ := c.Split(data)
	if a.ID == b.ID {
		t.Fatal("publishing the same image twice produced the same id")
	}
	if len(a.Label()) != 16 {
		t.Fatalf("label %q should be 16 hex chars", a.Label())
	}

	stats := c.Stats()
	if stats.MessagesChunked != 2 || stats.TotalBytes != 200 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestManifest(t *testing.T) {
	data := sampleImage(500)
	msg, err := NewChunker(0).Split(data)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	m, err := ParseManifest(msg.Manifest())
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if m.TotalChunks != len(msg.Chunks) {
		t.Fatalf("total = %d, want %d", m.TotalChunks, len(msg.Chunks))
	}
	if m.Timestamp.Unix() != msg.CreatedAt.Unix() {
		t.Fatalf("timestamp = %v, want %v", m.Timestamp, msg.CreatedAt)
	}
	if err := m.Verify(data); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := m.Verify(data[1:]); err == nil {
		t.Fatal("Verify should reject different data")
	}

	for _, bad := range []string{"", "1:2", "x:00000000:0", "0:00000000:0", "1:zz:0", "1:00000000:now"} {
		if _, err := ParseManifest(bad); err == nil {
			t.Errorf("ParseManifest(%q) should fail", bad)
		}
	}
}
