package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/validation"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateCreated is the initial state; no backend upload exists yet.
	StateCreated State = iota
	// StateInProgress means the backend upload exists and accepts parts.
	StateInProgress
	// StateCompleted is terminal: the object is visible.
	StateCompleted
	// StateAborted is terminal: the upload and its parts were discarded.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result describes a completed upload.
type Result struct {
	// Key is the destination object key
	Key string

	// UploadID is the backend upload identifier
	UploadID string

	// Parts is the ordered part list passed to the backend
	Parts []Part

	// Size is the object size in bytes
	Size int64

	// Digest is the hex BLAKE3 digest of the object bytes
	Digest string

	// Duration is the time from Initiate to Complete
	Duration time.Duration
}

// Manager drives one multipart upload. Part numbers start at 1 and increase
// by one per uploaded part with no gaps, across automatic and explicit
// flushes alike.
//
// After a failed backend call the Manager keeps the error: Write, FlushPart
// and Complete return it, and the caller must Abort. A Manager is not safe
// for concurrent use.
type Manager struct {
	backend  Backend
	logger   *slog.Logger
	partSize int
	capacity int

	key      string
	uploadID string
	state    State
	err      error

	buf      []byte
	parts    []Part
	nextPart int32
	size     int64
	hasher   *blake3.Hasher
	started  time.Time
}

// NewManager creates a Manager in StateCreated.
func NewManager(backend Backend, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	capacity := o.capacity
	if capacity == 0 {
		capacity = 2 * o.partSize
	}
	if capacity < o.partSize {
		capacity = o.partSize
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		backend:  backend,
		logger:   logger,
		partSize: o.partSize,
		capacity: capacity,
	}
}

// Initiate requests a new upload for key. On failure the Manager stays in
// StateCreated.
func (m *Manager) Initiate(ctx context.Context, key string) error {
	if m.state != StateCreated {
		return errors.InvalidState("initiate", "upload is %s", m.state).WithKey(key)
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}

	uploadID, err := m.backend.InitiateUpload(ctx, key)
	if err != nil {
		return errors.Storage("initiate", err).WithKey(key)
	}
	if uploadID == "" {
		return errors.Storage("initiate", nil).WithKey(key).WithMessage("backend returned an empty upload id")
	}

	m.key = key
	m.uploadID = uploadID
	m.state = StateInProgress
	m.buf = make([]byte, 0, m.capacity)
	m.nextPart = 1
	m.hasher = blake3.New()
	m.started = time.Now()

	m.logger.DebugContext(ctx, "multipart upload initiated", "key", key, "upload_id", uploadID)
	return nil
}

// Write appends p to the pending buffer. Whenever the buffer reaches the part
// size a part of exactly that size is uploaded, so one large write may
// produce several parts. The buffer never exceeds its capacity: bytes beyond
// it are only accepted after a synchronous flush.
func (m *Manager) Write(ctx context.Context, p []byte) error {
	if err := m.writable("write"); err != nil {
		return err
	}

	for len(p) > 0 {
		n := min(m.capacity-len(m.buf), len(p))
		m.buf = append(m.buf, p[:n]...)
		p = p[n:]

		for len(m.buf) >= m.partSize {
			if err := m.flush(ctx, m.partSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushPart uploads the whole pending buffer as the next part. It is a no-op
// when the buffer is empty. Backends reject undersized parts that are not the
// last one when the upload is completed.
func (m *Manager) FlushPart(ctx context.Context) error {
	if err := m.writable("flushPart"); err != nil {
		return err
	}
	if len(m.buf) == 0 {
		return nil
	}
	return m.flush(ctx, len(m.buf))
}

// Complete flushes any pending bytes as the final part and finalizes the
// upload. An upload with no data is completed with a single empty part.
//
// On failure the Manager does not abort on its own; the caller must call Abort.
func (m *Manager) Complete(ctx context.Context) (*Result, error) {
	if err := m.writable("complete"); err != nil {
		return nil, err
	}

	if len(m.buf) > 0 || len(m.parts) == 0 {
		if err := m.flush(ctx, len(m.buf)); err != nil {
			return nil, err
		}
	}

	parts := m.Parts()
	if err := m.backend.CompleteUpload(ctx, m.key, m.uploadID, parts); err != nil {
		m.err = errors.Storage("complete", err).WithKey(m.key)
		m.logger.ErrorContext(ctx, "failed to complete multipart upload",
			"key", m.key, "upload_id", m.uploadID, "parts", len(parts), "error", err)
		return nil, m.err
	}

	m.state = StateCompleted
	m.buf = nil

	result := &Result{
		Key:      m.key,
		UploadID: m.uploadID,
		Parts:    parts,
		Size:     m.size,
		Digest:   hex.EncodeToString(m.hasher.Sum(nil)),
		Duration: time.Since(m.started),
	}

	m.logger.InfoContext(ctx, "multipart upload completed",
		"key", m.key, "upload_id", m.uploadID, "parts", len(parts), "bytes", m.size)
	return result, nil
}

// Abort discards the upload and every part already stored. It is valid in
// any non-terminal state once Initiate has succeeded, including after a
// failed FlushPart or Complete. The Manager is Aborted afterwards even if the
// backend call fails; that failure is returned for the caller to report.
func (m *Manager) Abort(ctx context.Context) error {
	if m.state != StateInProgress {
		return errors.InvalidState("abort", "upload is %s", m.state).WithKey(m.key)
	}

	err := m.backend.AbortUpload(ctx, m.key, m.uploadID)
	m.state = StateAborted
	m.buf = nil

	if err != nil {
		m.logger.WarnContext(ctx, "failed to abort multipart upload",
			"key", m.key, "upload_id", m.uploadID, "error", err)
		return errors.Storage("abort", err).WithKey(m.key)
	}

	m.logger.InfoContext(ctx, "multipart upload aborted",
		"key", m.key, "upload_id", m.uploadID, "parts", len(m.parts))
	return nil
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Err returns the failure recorded by the last failed backend call, if any.
func (m *Manager) Err() error {
	return m.err
}

// Key returns the destination key once initiated.
func (m *Manager) Key() string {
	return m.key
}

// UploadID returns the backend upload identifier once initiated.
func (m *Manager) UploadID() string {
	return m.uploadID
}

// Parts returns a copy of the uploaded parts in order.
func (m *Manager) Parts() []Part {
	return append([]Part(nil), m.parts...)
}

// Buffered returns the number of pending bytes not yet uploaded.
func (m *Manager) Buffered() int {
	return len(m.buf)
}

// Capacity returns the pending buffer capacity.
func (m *Manager) Capacity() int {
	return m.capacity
}

// PartSize returns the flush threshold.
func (m *Manager) PartSize() int {
	return m.partSize
}

// Size returns the number of bytes uploaded so far.
func (m *Manager) Size() int64 {
	return m.size
}

func (m *Manager) writable(op string) error {
	if m.state != StateInProgress {
		return errors.InvalidState(op, "upload is %s", m.state).WithKey(m.key)
	}
	return m.err
}

// flush uploads the first n pending bytes as the next part.
func (m *Manager) flush(ctx context.Context, n int) error {
	number := m.nextPart
	data := m.buf[:n]

	etag, err := m.backend.UploadPart(ctx, m.key, m.uploadID, number, data)
	if err == nil && etag == "" {
		err = fmt.Errorf("backend returned an empty integrity tag")
	}
	if err != nil {
		m.err = errors.Storage("uploadPart", err).WithKey(m.key).WithPart(number)
		m.logger.ErrorContext(ctx, "failed to upload part",
			"key", m.key, "upload_id", m.uploadID, "part", number, "bytes", n, "error", err)
		return m.err
	}

	_, _ = m.hasher.Write(data)
	m.parts = append(m.parts, Part{Number: number, ETag: etag, Size: int64(n)})
	m.size += int64(n)
	m.nextPart++

	rest := copy(m.buf, m.buf[n:])
	m.buf = m.buf[:rest]

	m.logger.DebugContext(ctx, "uploaded part",
		"key", m.key, "upload_id", m.uploadID, "part", number, "bytes", n)
	return nil
}
