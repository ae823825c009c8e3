package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// ErrBlobNotFound is returned when a key has no backing object.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the narrow surface the document layer needs from an object
// store: key-addressed put/get/delete plus a pure public locator.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL maps a storage key to a retrievable URL. Pure, no I/O.
	PublicURL(key string) string
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeRe     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// SanitizeFileName makes an untrusted file name safe to embed in a storage
// key: whitespace runs become underscores, everything outside
// [A-Za-z0-9._-] is dropped.
func SanitizeFileName(name string) string {
	return unsafeRe.ReplaceAllString(whitespaceRe.ReplaceAllString(name, "_"), "")
}

// ObjectKey derives the deterministic storage key for an upload:
// {requestID}/{unixMillis}-{sanitizedName}. Keys are never user-supplied,
// which rules out collisions between requests and path traversal.
func ObjectKey(requestID string, now time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d-%s", requestID, now.UnixMilli(), SanitizeFileName(fileName))
}
