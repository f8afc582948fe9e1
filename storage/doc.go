// Package storage provides multipart upload backends for object stores.
//
// Each backend implements upload.Backend on top of a vendor SDK:
//
//   - S3Backend uses the AWS SDK v2 multipart API
//   - MinioBackend uses the minio-go Core multipart API for S3-compatible stores
//   - SwiftBackend emulates multipart uploads on OpenStack Swift with
//     segment objects and a dynamic large object manifest
//
// Backends are safe for concurrent use by several upload managers; the
// underlying SDK client is created once and shared.
package storage
