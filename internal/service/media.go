package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vidtube/vidtube/internal/storage"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// MediaStorage is an object store that can tell which URLs it issued.
type MediaStorage interface {
	storage.Storage
	BaseURL() string
}

// MediaUpload is an image received from a client.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// MediaUploader validates images and stores them under generated keys.
type MediaUploader struct {
	store    MediaStorage
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewMediaUploader creates an uploader that rejects images above maxBytes.
func NewMediaUploader(store MediaStorage, maxBytes int64, logger *slog.Logger) *MediaUploader {
	return &MediaUploader{
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the image and returns its public URL.
func (u *MediaUploader) Upload(ctx context.Context, kind storage.Kind, upload *MediaUpload) (string, error) {
	if upload == nil || upload.Data == nil {
		return "", apperrors.InvalidInput(fmt.Sprintf("%s file is required", kindLabel(kind)))
	}
	if !storage.IsAllowedContentType(upload.ContentType) {
		return "", apperrors.InvalidInput(fmt.Sprintf("unsupported image type %q", upload.ContentType))
	}
	if upload.Size > u.maxBytes {
		return "", apperrors.InvalidInput(fmt.Sprintf("%s file exceeds %d bytes", kindLabel(kind), u.maxBytes))
	}

	res, err := u.store.Upload(ctx, &storage.UploadInput{
		Key:         storage.NewKey(kind, upload.ContentType, u.now()),
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Data:        upload.Data,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", kindLabel(kind), err)
	}
	return res.URL, nil
}

// Resolve uploads the file when one is given, otherwise accepts ref as an
// already stored URL. An empty result means neither was provided.
func (u *MediaUploader) Resolve(ctx context.Context, kind storage.Kind, upload *MediaUpload, ref string) (string, error) {
	if upload != nil {
		return u.Upload(ctx, kind, upload)
	}
	return strings.TrimSpace(ref), nil
}

// Discard deletes an object this uploader issued. Failures are logged only,
// and URLs from elsewhere are ignored.
func (u *MediaUploader) Discard(ctx context.Context, url string) {
	key, ok := storage.KeyFromURL(u.store.BaseURL(), url)
	if !ok {
		return
	}
	if err := u.store.Delete(ctx, key); err != nil {
		u.logger.WarnContext(ctx, "failed to delete media object",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func kindLabel(kind storage.Kind) string {
	switch kind {
	case storage.KindAvatar:
		return "avatar"
	case storage.KindCover:
		return "cover image"
	default:
		return string(kind)
	}
}
