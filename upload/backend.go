// Package upload implements a buffered multipart upload state machine with
// all-or-nothing visibility.
//
// A Manager moves through Created -> InProgress -> {Completed, Aborted}. Bytes
// written while InProgress are buffered and shipped to the Backend as
// sequentially numbered parts; the destination object only becomes visible
// when Complete succeeds.
package upload

import "context"

// Part is one uploaded part of a multipart upload.
type Part struct {
	// Number is the 1-based part number
	Number int32

	// ETag is the integrity tag returned by the backend
	ETag string

	// Size is the number of bytes in the part
	Size int64
}

// Backend is the storage side of the multipart protocol. Backends enforce a
// minimum size on every part except the last.
//
// Implementations must not retain data after UploadPart returns, and must be
// safe for concurrent use by independent uploads.
type Backend interface {
	// InitiateUpload starts a new multipart upload for key and returns its identifier.
	InitiateUpload(ctx context.Context, key string) (string, error)

	// UploadPart stores data as part number partNumber and returns its integrity tag.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error)

	// CompleteUpload finalizes the upload from the ordered parts, making the object visible.
	CompleteUpload(ctx context.Context, key, uploadID string, parts []Part) error

	// AbortUpload discards the upload and every part stored for it.
	AbortUpload(ctx context.Context, key, uploadID string) error
}
