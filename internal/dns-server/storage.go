package dnsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faanross/simulacra_bmp/internal/chunker"
)

// ================================================================================
// STORAGE BACKEND FOR PUBLISHED STEGO IMAGES
// ================================================================================

// ErrNotFound is returned for unknown messages and chunks
var ErrNotFound = errors.New("not found")

// MAX_CONSUMERS bounds the per-message client table. Manifest queries come
// from anyone, so once full the least recently seen client is evicted.
const MAX_CONSUMERS = 64

// Message is a published stego image, keyed by its DNS label
type Message struct {
	ID          string         `json:"id"`
	Chunks      map[int]string `json:"chunks"` // sequence -> encoded chunk
	TotalChunks int            `json:"total_chunks"`
	Manifest    string         `json:"manifest"`
	CreatedAt   time.Time      `json:"created_at"`
	State       MessageState   `json:"state"`
	Fetches     int            `json:"fetches"` // Manifest queries served
	Consumers   []Consumer     `json:"consumers"`
}

// snapshot returns a copy safe to read without the storage lock. Chunks
// never change after StoreMessage and stay shared.
func (m *Message) snapshot() *Message {
	c := *m
	c.Consumers = append([]Consumer(nil), m.Consumers...)
	return &c
}

// MessageState tracks lifecycle
type MessageState int

const (
	StateNew       MessageState = iota // Published, never fetched
	StateDelivered                     // Manifest fetched at least once
)

func (s MessageState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateDelivered:
		return "delivered"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Consumer aggregates the manifest fetches of one client
type Consumer struct {
	ClientIP  string    `json:"client_ip"`
	Fetches   int       `json:"fetches"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// recordFetch counts a fetch from clientIP, keeping at most MAX_CONSUMERS
// entries
func (m *Message) recordFetch(clientIP string, at time.Time) {
	m.Fetches++

	oldest := -1
	for i := range m.Consumers {
		c := &m.Consumers[i]
		if c.ClientIP == clientIP {
			c.Fetches++
			c.LastSeen = at
			return
		}
		if oldest < 0 || c.LastSeen.Before(m.Consumers[oldest].LastSeen) {
			oldest = i
		}
	}

	entry := Consumer{ClientIP: clientIP, Fetches: 1, FirstSeen: at, LastSeen: at}
	if len(m.Consumers) < MAX_CONSUMERS {
		m.Consumers = append(m.Consumers, entry)
		return
	}
	m.Consumers[oldest] = entry
}

// NewMessage converts a chunked image into its stored form
func NewMessage(msg *chunker.Message) *Message {
	chunks := make(map[int]string, len(msg.Chunks))
	for _, c := range msg.Chunks {
		chunks[int(c.Metadata.Sequence)] = c.Encoded
	}
	return &Message{
		ID:          msg.Label(),
		Chunks:      chunks,
		TotalChunks: len(msg.Chunks),
		Manifest:    msg.Manifest(),
	}
}

// Storage is the record source behind the DNS server
type Storage interface {
	StoreMessage(msg *Message) error
	GetMessage(id string) (*Message, error)
	GetChunk(id string, seq int) (string, error)
	GetManifest(id string) (string, error)
	MarkAsDelivered(id, clientIP string) error

	ListMessages() ([]*Message, error)
	CleanExpired(ttl time.Duration) int
	GetStats() StorageStats
}

// StorageStats provides metrics
type StorageStats struct {
	TotalMessages int
	NewMessages   int
	Delivered     int
	TotalChunks   int
}

// ================================================================================
// IN-MEMORY STORAGE IMPLEMENTATION
// ================================================================================

// MemoryStorage keeps everything in RAM
type MemoryStorage struct {
	messages map[string]*Message
	mu       sync.RWMutex
	stats    StorageStats
}

// NewMemoryStorage creates in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages: make(map[string]*Message),
	}
}

// StoreMessage adds a new message
func (ms *MemoryStorage) StoreMessage(msg *Message) error {
	if msg.ID == "" {
		return errors.New("message has no id")
	}
	if len(msg.Chunks) != msg.TotalChunks {
		return fmt.Errorf("message %s has %d of %d chunks", msg.ID, len(msg.Chunks), msg.TotalChunks)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.messages[msg.ID]; exists {
		return fmt.Errorf("message %s already exists", msg.ID)
	}

	msg.State = StateNew
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	ms.messages[msg.ID] = msg

	ms.stats.TotalMessages++
	ms.stats.NewMessages++
	ms.stats.TotalChunks += len(msg.Chunks)

	return nil
}

// GetMessage returns a copy of a message by ID
func (ms *MemoryStorage) GetMessage(id string) (*Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	msg, exists := ms.messages[id]
	if !exists {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return msg.snapshot(), nil
}

// GetChunk retrieves a specific chunk
func (ms *MemoryStorage) GetChunk(id string, seq int) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	msg, exists := ms.messages[id]
	if !exists {
		return "", fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	data, exists := msg.Chunks[seq]
	if !exists {
		return "", fmt.Errorf("chunk %d of %s: %w", seq, id, ErrNotFound)
	}
	return data, nil
}

// GetManifest retrieves the manifest record of a message
func (ms *MemoryStorage) GetManifest(id string) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	msg, exists := ms.messages[id]
	if !exists {
		return "", fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return msg.Manifest, nil
}

// MarkAsDelivered records that a client fetched the manifest
func (ms *MemoryStorage) MarkAsDelivered(id, clientIP string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	msg, exists := ms.messages[id]
	if !exists {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	if msg.State == StateNew {
		msg.State = StateDelivered
		ms.stats.NewMessages--
		ms.stats.Delivered++
	}

	msg.recordFetch(clientIP, time.Now())

	return nil
}

// ListMessages returns copies of all messages
func (ms *MemoryStorage) ListMessages() ([]*Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	messages := make([]*Message, 0, len(ms.messages))
	for _, msg := range ms.messages {
		messages = append(messages, msg.snapshot())
	}
	return messages, nil
}

// CleanExpired removes old messages
func (ms *MemoryStorage) CleanExpired(ttl time.Duration) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0

	for id, msg := range ms.messages {
		if msg.CreatedAt.Before(cutoff) {
			delete(ms.messages, id)
			removed++

			ms.stats.TotalMessages--
			ms.stats.TotalChunks -= len(msg.Chunks)
			if msg.State == StateNew {
				ms.stats.NewMessages--
			} else {
				ms.stats.Delivered--
			}
		}
	}

	return removed
}

// GetStats returns storage statistics
func (ms *MemoryStorage) GetStats() StorageStats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return ms.stats
}

// ================================================================================
// PERSISTENT STORAGE IMPLEMENTATION
// ================================================================================

type snapshot struct {
	Messages map[string]*Message `json:"messages"`
	Stats    StorageStats        `json:"stats"`
}

// FileStorage adds persistence to memory storage. Publishing and expiry
// are written through; delivery tracking only marks the state dirty and is
// written by Flush or Save, so answering queries never touches the disk.
type FileStorage struct {
	*MemoryStorage
	dataFile string
	log      *log.Logger
	mu       sync.Mutex // Serializes file writes
	dirty    atomic.Bool
	saveErr  error // Last failed save, cleared by a successful one
}

// NewFileStorage creates persistent storage, loading dataFile if present.
// A nil logger discards output.
func NewFileStorage(dataFile string, logger *log.Logger) (*FileStorage, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	fs := &FileStorage{
		MemoryStorage: NewMemoryStorage(),
		dataFile:      dataFile,
		log:           logger,
	}

	if err := fs.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return fs, nil
}

// StoreMessage adds message and persists to disk
func (fs *FileStorage) StoreMessage(msg *Message) error {
	if err := fs.MemoryStorage.StoreMessage(msg); err != nil {
		return err
	}
	return fs.Save()
}

// MarkAsDelivered updates state in memory; Flush persists it
func (fs *FileStorage) MarkAsDelivered(id, clientIP string) error {
	if err := fs.MemoryStorage.MarkAsDelivered(id, clientIP); err != nil {
		return err
	}
	fs.dirty.Store(true)
	return nil
}

// CleanExpired removes old messages and persists if anything changed. A
// failed save is logged and kept for SaveErr.
func (fs *FileStorage) CleanExpired(ttl time.Duration) int {
	removed := fs.MemoryStorage.CleanExpired(ttl)
	if removed > 0 {
		if err := fs.Save(); err != nil {
			fs.log.Printf("❌ Expired %d messages but could not persist: %v", removed, err)
		}
	}
	return removed
}

// Flush saves if anything changed since the last successful save
func (fs *FileStorage) Flush() error {
	if !fs.dirty.Load() {
		return nil
	}
	return fs.Save()
}

// SaveErr returns the error of the last save if it failed
func (fs *FileStorage) SaveErr() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.saveErr
}

// Save writes current state to disk
func (fs *FileStorage) Save() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := fs.save()
	fs.saveErr = err
	return err
}

func (fs *FileStorage) save() error {
	fs.dirty.Store(false)

	fs.MemoryStorage.mu.RLock()
	jsonData, err := json.MarshalIndent(snapshot{
		Messages: fs.messages,
		Stats:    fs.stats,
	}, "", "  ")
	fs.MemoryStorage.mu.RUnlock()
	if err != nil {
		fs.dirty.Store(true)
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Atomic write (write to temp, then rename)
	tempFile := fs.dataFile + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		fs.dirty.Store(true)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, fs.dataFile); err != nil {
		os.Remove(tempFile)
		fs.dirty.Store(true)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Load reads state from disk
func (fs *FileStorage) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	jsonData, err := os.ReadFile(fs.dataFile)
	if err != nil {
		return err
	}

	var data snapshot
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if data.Messages == nil {
		data.Messages = make(map[string]*Message)
	}

	fs.MemoryStorage.mu.Lock()
	fs.messages = data.Messages
	fs.stats = data.Stats
	fs.MemoryStorage.mu.Unlock()

	return nil
}
