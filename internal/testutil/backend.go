package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// MemoryBackend is an in-memory upload.Backend with object-store visibility
// semantics: an object exists only after a successful CompleteUpload, and an
// aborted upload leaves nothing behind.
//
// Failures can be injected per call through the Fail* hooks. Safe for
// concurrent use.
type MemoryBackend struct {
	// MinPartSize, when positive, is enforced on every part but the last at
	// completion time.
	MinPartSize int

	FailInitiate func(key string) error
	FailPart     func(key string, part int32) error
	FailComplete func(key string) error
	FailAbort    func(key string) error

	mu      sync.Mutex
	nextID  int
	uploads map[string]*memoryUpload
	objects map[string][]byte
	calls   []string
}

type memoryUpload struct {
	key   string
	parts map[int32][]byte
	tags  map[int32]string
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		uploads: make(map[string]*memoryUpload),
		objects: make(map[string][]byte),
	}
}

// InitiateUpload implements upload.Backend.
func (b *MemoryBackend) InitiateUpload(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "initiate")
	if b.FailInitiate != nil {
		if err := b.FailInitiate(key); err != nil {
			return "", err
		}
	}

	b.nextID++
	id := fmt.Sprintf("upload-%d", b.nextID)
	b.uploads[id] = &memoryUpload{
		key:   key,
		parts: make(map[int32][]byte),
		tags:  make(map[int32]string),
	}
	return id, nil
}

// UploadPart implements upload.Backend. The data is copied.
func (b *MemoryBackend) UploadPart(_ context.Context, key, uploadID string, partNumber int32, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, fmt.Sprintf("uploadPart %d", partNumber))
	if b.FailPart != nil {
		if err := b.FailPart(key, partNumber); err != nil {
			return "", err
		}
	}

	u, err := b.lookup(key, uploadID)
	if err != nil {
		return "", err
	}

	sum := blake3.Sum256(data)
	tag := hex.EncodeToString(sum[:8])
	u.parts[partNumber] = append([]byte(nil), data...)
	u.tags[partNumber] = tag
	return tag, nil
}

// CompleteUpload implements upload.Backend. The part list must name uploaded
// parts in increasing order with matching tags.
func (b *MemoryBackend) CompleteUpload(_ context.Context, key, uploadID string, parts []upload.Part) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "complete")
	if b.FailComplete != nil {
		if err := b.FailComplete(key); err != nil {
			return err
		}
	}

	u, err := b.lookup(key, uploadID)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("no parts specified")
	}

	var object []byte
	for i, p := range parts {
		if i > 0 && p.Number <= parts[i-1].Number {
			return fmt.Errorf("part %d is out of order", p.Number)
		}
		data, ok := u.parts[p.Number]
		if !ok || u.tags[p.Number] != p.ETag {
			return fmt.Errorf("invalid part %d", p.Number)
		}
		if b.MinPartSize > 0 && i < len(parts)-1 && len(data) < b.MinPartSize {
			return fmt.Errorf("part %d is smaller than the minimum allowed size", p.Number)
		}
		object = append(object, data...)
	}
	if object == nil {
		object = []byte{}
	}

	b.objects[key] = object
	delete(b.uploads, uploadID)
	return nil
}

// AbortUpload implements upload.Backend.
func (b *MemoryBackend) AbortUpload(_ context.Context, key, uploadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "abort")
	if b.FailAbort != nil {
		if err := b.FailAbort(key); err != nil {
			return err
		}
	}

	if _, err := b.lookup(key, uploadID); err != nil {
		return err
	}
	delete(b.uploads, uploadID)
	return nil
}

// Object returns the visible object stored at key.
func (b *MemoryBackend) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// Objects returns the number of visible objects.
func (b *MemoryBackend) Objects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// PendingUploads returns the number of uploads neither completed nor aborted.
func (b *MemoryBackend) PendingUploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

// Calls returns the ordered backend call log.
func (b *MemoryBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CountCalls returns how many logged calls equal name.
func (b *MemoryBackend) CountCalls(name string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (b *MemoryBackend) lookup(key, uploadID string) (*memoryUpload, error) {
	u, ok := b.uploads[uploadID]
	if !ok {
		return nil, fmt.Errorf("no such upload: %s", uploadID)
	}
	if u.key != key {
		return nil, fmt.Errorf("upload %s belongs to %s, not %s", uploadID, u.key, key)
	}
	return u, nil
}

// Verify interface compliance
var _ upload.Backend = (*MemoryBackend)(nil)
