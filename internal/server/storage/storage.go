// Package storage abstracts file content persistence behind a single
// interface with two interchangeable backends: a local filesystem directory
// and S3-compatible object storage. Exactly one backend is constructed at
// startup from configuration and injected into the services; call sites
// never ask which backend is active.
package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignMode selects which kind of temporary access a signed URL grants.
type SignMode string

const (
	SignModeDownload SignMode = "download"
	SignModeUpload   SignMode = "upload"
)

// DefaultSignTTL bounds signed URL lifetime when the caller passes zero.
const DefaultSignTTL = 15 * time.Minute

// Object describes a stored blob: the collision-resistant generated name and
// the opaque backend key it lives under. The key is an internal detail and
// must never be exposed to end users.
type Object struct {
	GeneratedName string
	Key           string
}

// Storage is the uniform put/get/delete/sign contract over both backends.
//
// Put writes content under an owner-scoped key and returns the stored
// object. Get reads it back. Delete removes it. Sign returns a URL granting
// temporary access; its shape is backend-specific (a credentialed URL for
// S3, a locally-servable path for the filesystem backend whose serving
// endpoint re-verifies ownership).
//
// Backend failures surface as errors matching common.ErrStorageUnavailable;
// callers must not leak the underlying detail to end users.
type Storage interface {
	Put(ctx context.Context, content []byte, originalName, mimeType, ownerID string) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Sign(ctx context.Context, key string, mode SignMode, ttl time.Duration) (string, error)
}

// generateName builds a collision-resistant object name preserving the
// original file extension. A random UUID, not a content hash: two owners
// uploading identical bytes must still get independent, independently
// deletable objects.
func generateName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	// Drop anything that is not a plain extension (path tricks, oversized
	// fragments of untrusted names).
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.New().String() + ext
}
