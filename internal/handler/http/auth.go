package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vidtube/vidtube/internal/service"
	"github.com/vidtube/vidtube/pkg/httputil"
	"github.com/vidtube/vidtube/pkg/middleware"
	"github.com/vidtube/vidtube/pkg/validator"
)

const jsonBodyLimit = 1 << 20

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	service    *service.SessionService
	cookies    CookieConfig
	uploadBody int64
	logger     *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler. maxUpload bounds each
// uploaded image.
func NewAuthHandler(svc *service.SessionService, cookies CookieConfig, maxUpload int64, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:    svc,
		cookies:    cookies,
		uploadBody: 2*maxUpload + jsonBodyLimit,
		logger:     logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the body of a registration, sent either as JSON or as
// multipart form fields. With JSON the images are referenced by URL.
type RegisterRequest struct {
	FullName      string `json:"fullName"`
	Username      string `json:"username" validate:"notblank,max=50"`
	Email         string `json:"email" validate:"notblank,email"`
	Password      string `json:"password" validate:"notblank,max=72"`
	AvatarRef     string `json:"avatarRef"`
	CoverImageRef string `json:"coverImageRef"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"notblank"`
}

// RefreshTokenRequest is the optional JSON body of a token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"notblank"`
	NewPassword string `json:"newPassword" validate:"notblank,max=72"`
}

// --- Response types ---

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	User         any    `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// --- Handlers ---

// Register handles POST /api/v1/users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadBody)

	var (
		req   RegisterRequest
		input service.RegisterInput
	)
	if isMultipart(r) {
		cleanup, err := parseMultipart(r)
		defer cleanup()
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		req = RegisterRequest{
			FullName: r.FormValue("fullName"),
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}

		avatar, avatarFile, err := formFile(r, "avatar")
		defer avatarFile.Close()
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		cover, coverFile, err := formFile(r, "coverImage")
		defer coverFile.Close()
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		input.Avatar, input.CoverImage = avatar, cover
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteValidationError(w, r, errors.New("invalid request body: "+err.Error()))
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	input.FullName = req.FullName
	input.Username = req.Username
	input.Email = req.Email
	input.Password = req.Password
	input.AvatarRef = req.AvatarRef
	input.CoverImageRef = req.CoverImageRef

	account, err := h.service.Register(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, account, "User registered successfully")
}

// Login handles POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.service.Authenticate(r.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSessionCookies(w, &res.Tokens)
	httputil.WriteSuccess(w, http.StatusOK, LoginResponse{
		User:         res.Account,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.AccountIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearSessionCookies(w)
	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The cookie wins
// over the body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)

	var presented string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		var req RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httputil.WriteValidationError(w, r, errors.New("invalid request body: "+err.Error()))
			return
		}
		presented = req.RefreshToken
	}

	pair, err := h.service.RotateRefresh(r.Context(), presented)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSessionCookies(w, pair)
	httputil.WriteSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	accountID := middleware.AccountIDFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), accountID, req.OldPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "Password changed successfully")
}
