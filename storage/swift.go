package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ncw/swift"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// manifestHeader names the segment prefix of a dynamic large object.
const manifestHeader = "X-Object-Manifest"

// SwiftConnection is the subset of *swift.Connection used by SwiftBackend.
type SwiftConnection interface {
	ObjectPut(
		container, objectName string,
		contents io.Reader,
		checkHash bool,
		hash string,
		contentType string,
		h swift.Headers,
	) (swift.Headers, error)
	ObjectDelete(container, objectName string) error
}

// SwiftConfig holds OpenStack object storage credentials.
type SwiftConfig struct {
	UserName string
	APIKey   string
	AuthURL  string
	Domain   string
	Tenant   string
	Region   string
}

// NewSwiftConnection authenticates against OpenStack object storage.
func NewSwiftConnection(cfg SwiftConfig) (*swift.Connection, error) {
	if cfg.AuthURL == "" {
		return nil, errors.InvalidInput("newSwiftConnection", "auth url cannot be empty")
	}

	conn := &swift.Connection{
		UserName: cfg.UserName,
		ApiKey:   cfg.APIKey,
		AuthUrl:  cfg.AuthURL,
		Domain:   cfg.Domain,
		Tenant:   cfg.Tenant,
		Region:   cfg.Region,
	}
	if err := conn.Authenticate(); err != nil {
		return nil, errors.Storage("newSwiftConnection", err).WithMessage("failed to authenticate with object storage")
	}
	return conn, nil
}

// SwiftBackend emulates multipart uploads on OpenStack Swift.
//
// Parts are stored as segment objects named <key>/<uploadID>/<part> in the
// segment container. Completing writes a zero-byte manifest object at key
// whose X-Object-Manifest header makes Swift serve the concatenated segments;
// until then nothing exists at key. Aborting deletes the uploaded segments.
type SwiftBackend struct {
	conn             SwiftConnection
	container        string
	segmentContainer string
	opts             *backendOptions
	logger           *slog.Logger

	mu      sync.Mutex
	uploads map[string]*swiftUpload
}

type swiftUpload struct {
	key   string
	parts map[int32]string
}

// NewSwiftBackend creates a backend writing manifests to container and
// segments to segmentContainer. An empty segmentContainer stores segments
// alongside the manifests.
func NewSwiftBackend(conn SwiftConnection, container, segmentContainer string, opts ...Option) (*SwiftBackend, error) {
	if container == "" {
		return nil, errors.InvalidInput("newSwiftBackend", "container cannot be empty")
	}
	if segmentContainer == "" {
		segmentContainer = container
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &SwiftBackend{
		conn:             conn,
		container:        container,
		segmentContainer: segmentContainer,
		opts:             o,
		logger:           o.logger,
		uploads:          make(map[string]*swiftUpload),
	}, nil
}

// InitiateUpload implements upload.Backend. No request is made; the upload
// only exists in this backend until segments are written.
func (b *SwiftBackend) InitiateUpload(ctx context.Context, key string) (string, error) {
	uploadID := uuid.NewString()

	b.mu.Lock()
	b.uploads[uploadID] = &swiftUpload{key: key, parts: make(map[int32]string)}
	b.mu.Unlock()

	b.logger.DebugContext(ctx, "created Swift segmented upload",
		"container", b.container, "key", key, "upload_id", uploadID)
	return uploadID, nil
}

// UploadPart implements upload.Backend. The segment is verified against its
// MD5 digest, which is also the returned integrity tag.
func (b *SwiftBackend) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	data []byte,
) (string, error) {
	if _, err := b.lookup(key, uploadID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])

	_, err := b.conn.ObjectPut(b.segmentContainer, segmentName(key, uploadID, partNumber),
		bytes.NewReader(data), true, etag, DefaultContentType, nil)
	if err != nil {
		return "", fmt.Errorf("swift segment put failed: %w", err)
	}

	b.mu.Lock()
	if u, ok := b.uploads[uploadID]; ok {
		u.parts[partNumber] = etag
	}
	b.mu.Unlock()
	return etag, nil
}

// CompleteUpload implements upload.Backend. parts must list exactly the
// uploaded segments.
func (b *SwiftBackend) CompleteUpload(ctx context.Context, key, uploadID string, parts []upload.Part) error {
	u, err := b.lookup(key, uploadID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	uploaded := len(u.parts)
	var mismatch error
	for _, p := range parts {
		if etag, ok := u.parts[p.Number]; !ok || etag != p.ETag {
			mismatch = fmt.Errorf("invalid part %d", p.Number)
			break
		}
	}
	b.mu.Unlock()

	if mismatch != nil {
		return mismatch
	}
	if len(parts) != uploaded {
		return fmt.Errorf("part list names %d of %d uploaded segments", len(parts), uploaded)
	}

	headers := swift.Headers{
		manifestHeader: b.segmentContainer + "/" + segmentPrefix(key, uploadID),
	}
	for k, v := range b.opts.metadata {
		headers["X-Object-Meta-"+k] = v
	}

	_, err = b.conn.ObjectPut(b.container, key, bytes.NewReader(nil), false, "", b.opts.contentType, headers)
	if err != nil {
		return fmt.Errorf("swift manifest put failed: %w", err)
	}

	b.mu.Lock()
	delete(b.uploads, uploadID)
	b.mu.Unlock()
	return nil
}

// AbortUpload implements upload.Backend. Every uploaded segment is deleted;
// segments that are already gone are ignored.
func (b *SwiftBackend) AbortUpload(ctx context.Context, key, uploadID string) error {
	u, err := b.lookup(key, uploadID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	numbers := make([]int32, 0, len(u.parts))
	for n := range u.parts {
		numbers = append(numbers, n)
	}
	delete(b.uploads, uploadID)
	b.mu.Unlock()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	var errs []error
	for _, n := range numbers {
		err := b.conn.ObjectDelete(b.segmentContainer, segmentName(key, uploadID, n))
		if err != nil && !stderrors.Is(err, swift.ObjectNotFound) {
			errs = append(errs, fmt.Errorf("delete segment %d: %w", n, err))
		}
	}

	b.logger.DebugContext(ctx, "aborted Swift segmented upload",
		"container", b.container, "key", key, "upload_id", uploadID, "segments", len(numbers))
	return stderrors.Join(errs...)
}

func (b *SwiftBackend) lookup(key, uploadID string) (*swiftUpload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.uploads[uploadID]
	if !ok {
		return nil, fmt.Errorf("no such upload: %s", uploadID)
	}
	if u.key != key {
		return nil, fmt.Errorf("upload %s does not belong to %s", uploadID, key)
	}
	return u, nil
}

// segmentPrefix ends with a slash so that one upload's manifest never
// matches another upload's segments.
func segmentPrefix(key, uploadID string) string {
	return key + "/" + uploadID + "/"
}

// segmentName zero-pads the part number so lexical order is part order.
func segmentName(key, uploadID string, partNumber int32) string {
	return fmt.Sprintf("%s%08d", segmentPrefix(key, uploadID), partNumber)
}

// Verify interface compliance
var (
	_ upload.Backend  = (*SwiftBackend)(nil)
	_ SwiftConnection = (*swift.Connection)(nil)
)
