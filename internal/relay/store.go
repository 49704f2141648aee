package relay

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/faanross/simulacra_ppm/internal/chunker"
)

// MaxNameLen is the longest carrier name; names travel as one TXT string
// in listings.
const MaxNameLen = 255

var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("carrier already published")
	ErrNameTooLong = fmt.Errorf("carrier name longer than %d bytes", MaxNameLen)
)

// Record is a published carrier in wire form.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`     // Source file name, informational
	Manifest  string    `json:"manifest"` // Manifest TXT value
	Chunks    []string  `json:"chunks"`   // Encoded TXT strings in sequence order
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Fetches   int       `json:"fetches"` // Chunk queries served
	LastFetch time.Time `json:"last_fetch"`
}

// NewRecord chunks data for publication.
func NewRecord(name string, data []byte) (*Record, error) {
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	c, err := chunker.Split(data)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", name, err)
	}
	return &Record{
		ID:        c.ID.String(),
		Name:      name,
		Manifest:  c.Manifest.String(),
		Chunks:    c.Encoded(),
		Size:      len(data),
		CreatedAt: time.Now(),
	}, nil
}

func (r *Record) clone() *Record {
	out := *r
	out.Chunks = slices.Clone(r.Chunks)
	return &out
}

// Store holds published carriers.
type Store interface {
	Put(rec *Record) error
	Get(id string) (*Record, error)
	Chunk(id string, seq int) (string, error)
	List() []*Record
	Remove(id string) error
	CleanExpired(ttl time.Duration) int
	Stats() Stats
}

// Stats provides metrics
type Stats struct {
	Carriers int   `json:"carriers"`
	Chunks   int   `json:"chunks"`
	Bytes    int64 `json:"bytes"`
	Fetches  int   `json:"fetches"`
}

// ================================================================================
// IN-MEMORY STORAGE
// ================================================================================

// MemoryStore keeps everything in RAM
type MemoryStore struct {
	mu       sync.RWMutex
	carriers map[string]*Record
	fetches  int
}

// NewMemoryStore creates in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carriers: make(map[string]*Record),
	}
}

// Put stores a copy of rec.
func (ms *MemoryStore) Put(rec *Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(rec.Name) > MaxNameLen {
		return fmt.Errorf("%w: %s", ErrNameTooLong, rec.ID)
	}
	if _, exists := ms.carriers[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	ms.carriers[rec.ID] = rec.clone()
	return nil
}

// Get returns a copy of the record.
func (ms *MemoryStore) Get(id string) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, exists := ms.carriers[id]
	if !exists {
		return nil, fmt.Errorf("carrier %s: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

// Chunk returns one encoded chunk and counts the fetch.
func (ms *MemoryStore) Chunk(id string, seq int) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, exists := ms.carriers[id]
	if !exists {
		return "", fmt.Errorf("carrier %s: %w", id, ErrNotFound)
	}
	if seq < 0 || seq >= len(rec.Chunks) {
		return "", fmt.Errorf("chunk %d of %s: %w", seq, id, ErrNotFound)
	}
	rec.Fetches++
	rec.LastFetch = time.Now()
	ms.fetches++
	return rec.Chunks[seq], nil
}

// List returns copies of all records, oldest first.
func (ms *MemoryStore) List() []*Record {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*Record, 0, len(ms.carriers))
	for _, rec := range ms.carriers {
		out = append(out, rec.clone())
	}
	slices.SortFunc(out, func(a, b *Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Remove deletes a carrier.
func (ms *MemoryStore) Remove(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.carriers[id]; !exists {
		return fmt.Errorf("carrier %s: %w", id, ErrNotFound)
	}
	delete(ms.carriers, id)
	return nil
}

// CleanExpired removes carriers published more than ttl ago
func (ms *MemoryStore) CleanExpired(ttl time.Duration) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, rec := range ms.carriers {
		if rec.CreatedAt.Before(cutoff) {
			delete(ms.carriers, id)
			removed++
		}
	}
	return removed
}

// Stats returns storage statistics
func (ms *MemoryStore) Stats() Stats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s := Stats{Carriers: len(ms.carriers), Fetches: ms.fetches}
	for _, rec := range ms.carriers {
		s.Chunks += len(rec.Chunks)
		s.Bytes += int64(rec.Size)
	}
	return s
}

// ================================================================================
// PERSISTENT STORAGE
// ================================================================================

// FileStore adds JSON persistence to MemoryStore. Chunk fetch counters are
// persisted on the next write or an explicit Save.
type FileStore struct {
	*MemoryStore
	dataFile string
	saveMu   sync.Mutex
}

// NewFileStore loads dataFile if it exists.
func NewFileStore(dataFile string) (*FileStore, error) {
	fs := &FileStore{
		MemoryStore: NewMemoryStore(),
		dataFile:    dataFile,
	}
	if err := fs.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dataFile, err)
	}
	return fs, nil
}

// Put stores rec and persists to disk
func (fs *FileStore) Put(rec *Record) error {
	if err := fs.MemoryStore.Put(rec); err != nil {
		return err
	}
	return fs.Save()
}

// Remove deletes a carrier and persists to disk
func (fs *FileStore) Remove(id string) error {
	if err := fs.MemoryStore.Remove(id); err != nil {
		return err
	}
	return fs.Save()
}

// CleanExpired removes old carriers and persists when anything changed.
func (fs *FileStore) CleanExpired(ttl time.Duration) int {
	removed := fs.MemoryStore.CleanExpired(ttl)
	if removed > 0 {
		// A failed save is retried by the next write.
		_ = fs.Save()
	}
	return removed
}

type snapshot struct {
	Carriers []*Record `json:"carriers"`
	Fetches  int       `json:"fetches"`
}

// Save writes current state to disk atomically
func (fs *FileStore) Save() error {
	fs.saveMu.Lock()
	defer fs.saveMu.Unlock()

	fs.mu.RLock()
	snap := snapshot{Fetches: fs.fetches}
	fs.mu.RUnlock()
	snap.Carriers = fs.List()

	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tempFile := fs.dataFile + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, fs.dataFile); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the file contents.
func (fs *FileStore) Load() error {
	fs.saveMu.Lock()
	defer fs.saveMu.Unlock()

	jsonData, err := os.ReadFile(fs.dataFile)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(jsonData, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.carriers = make(map[string]*Record, len(snap.Carriers))
	for _, rec := range snap.Carriers {
		fs.carriers[rec.ID] = rec
	}
	fs.fetches = snap.Fetches
	return nil
}
