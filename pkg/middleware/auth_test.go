package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

func fixedVerifier(valid string) TokenVerifier {
	return func(token string) (*Principal, error) {
		if token != valid {
			return nil, apperrors.ErrTokenExpired
		}
		return &Principal{AccountID: "acct-1", Username: "jdoe", Email: "j@x.io"}, nil
	}
}

func serveAuth(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	var seen *Principal
	h := Auth(fixedVerifier("good"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestAuth_CookieToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})

	rr, p := serveAuth(t, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, p)
	assert.Equal(t, "acct-1", p.AccountID)
}

func TestAuth_BearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	rr, p := serveAuth(t, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "jdoe", p.Username)
}

func TestAuth_CookieWinsOverHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "bad"})
	req.Header.Set("Authorization", "Bearer good")

	rr, _ := serveAuth(t, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	rr, p := serveAuth(t, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Nil(t, p)
	assert.Equal(t, "UNAUTHORIZED", errorBody(t, rr)["code"])
}

func TestAuth_InvalidTokenIsGeneric(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")

	rr, _ := serveAuth(t, req)
	body := errorBody(t, rr)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apperrors.InvalidTokenMessage, body["message"])
	assert.Equal(t, false, body["success"])
}

func TestAccessToken_IgnoresOtherSchemes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Empty(t, AccessToken(req))
}

func TestAccountIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, AccountIDFromContext(req.Context()))

	ctx := WithPrincipal(req.Context(), &Principal{AccountID: "acct-2"})
	assert.Equal(t, "acct-2", AccountIDFromContext(ctx))
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	h := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("nil map write"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, rr.Body.String(), "nil map")
}
