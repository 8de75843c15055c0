package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vidtube/vidtube/internal/service"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart parses the form and returns a cleanup func that removes
// any temporary files.
func parseMultipart(r *http.Request) (func(), error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return func() {}, apperrors.InvalidInput(fmt.Sprintf("invalid multipart form: %v", err))
	}
	return func() { _ = r.MultipartForm.RemoveAll() }, nil
}

// formFile returns the uploaded file under field, or nil when there is none.
// The caller closes the returned closer once the upload has been consumed.
func formFile(r *http.Request, field string) (*service.MediaUpload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, io.NopCloser(nil), nil
	}
	if err != nil {
		return nil, io.NopCloser(nil), apperrors.InvalidInput(fmt.Sprintf("invalid %s file: %v", field, err))
	}
	return &service.MediaUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	}, file, nil
}
