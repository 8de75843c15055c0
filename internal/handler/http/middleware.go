package http

import (
	"net/http"
	"strings"

	"github.com/vidtube/vidtube/pkg/httputil"
)

// ContentTypeJSON rejects requests that carry a body which is not JSON.
// Bodiless requests pass, so refresh-token can rely on the cookie alone.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
				StatusCode: http.StatusUnsupportedMediaType,
				Code:       "UNSUPPORTED_MEDIA_TYPE",
				Message:    "Content-Type must be application/json",
				Errors:     []httputil.FieldError{},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
