package document

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"time"
)

// DefaultKey is where the editor keeps its current buffer.
const DefaultKey = "editor-data"

var (
	ErrNotFound   = errors.New("document not found")
	ErrInvalidKey = errors.New("invalid document key")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

type Document struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (d *Document) MarshalBinary() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (d *Document) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, d)
}

type Store interface {
	Get(ctx context.Context, key string) (*Document, error)
	// Put stores doc and sets its UpdatedAt.
	Put(ctx context.Context, doc *Document) error
}

func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) Put(ctx context.Context, doc *Document) error {
	if !ValidKey(doc.Key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc.UpdatedAt = s.now().UTC()
	s.docs[doc.Key] = *doc
	return nil
}
