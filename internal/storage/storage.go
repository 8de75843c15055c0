package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for media object storage.
type Storage interface {
	// Upload stores an object and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// Kind is the top-level folder an object is stored under.
type Kind string

const (
	KindAvatar Kind = "avatars"
	KindCover  Kind = "covers"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// IsAllowedContentType reports whether images of this type may be uploaded.
func IsAllowedContentType(contentType string) bool {
	_, ok := extensions[normalizeContentType(contentType)]
	return ok
}

// NewKey builds a unique object key such as avatars/2026/01/<uuid>.png.
func NewKey(kind Kind, contentType string, now time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), uuid.NewString(), extensions[normalizeContentType(contentType)])
}

// KeyFromURL recovers the object key from a URL produced under baseURL. It
// returns false for URLs this storage did not issue.
func KeyFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if baseURL == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
