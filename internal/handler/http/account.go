package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/internal/service"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
	"github.com/vidtube/vidtube/pkg/httputil"
	"github.com/vidtube/vidtube/pkg/middleware"
	"github.com/vidtube/vidtube/pkg/pagination"
	"github.com/vidtube/vidtube/pkg/validator"
)

// AccountHandler handles profile, channel and watch history endpoints.
type AccountHandler struct {
	service    *service.AccountService
	uploadBody int64
	logger     *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(svc *service.AccountService, maxUpload int64, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service:    svc,
		uploadBody: maxUpload + jsonBodyLimit,
		logger:     logger,
	}
}

// UpdateAccountRequest is the JSON request body for a profile update.
type UpdateAccountRequest struct {
	FullName string `json:"fullName" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"notblank,email"`
}

// --- Profile ---

// CurrentUser handles GET /api/v1/users/current-user
func (h *AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.CurrentAccount(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, account, "User fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)

	var req UpdateAccountRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	accountID := middleware.AccountIDFromContext(r.Context())
	account, err := h.service.UpdateAccountDetails(r.Context(), accountID, req.FullName, req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, account, "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar
func (h *AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.service.UpdateAvatar, "Avatar updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image
func (h *AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.service.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater func(ctx context.Context, accountID string, upload *service.MediaUpload) (*domain.AccountView, error)

func (h *AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdater, message string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadBody)

	if !isMultipart(r) {
		httputil.WriteError(w, r, apperrors.InvalidInput("Content-Type must be multipart/form-data"), h.logger)
		return
	}
	cleanup, err := parseMultipart(r)
	defer cleanup()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	upload, file, err := formFile(r, field)
	defer file.Close()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if upload == nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("%s file is missing", field)), h.logger)
		return
	}

	account, err := update(r.Context(), middleware.AccountIDFromContext(r.Context()), upload)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, account, message)
}

// --- Channels ---

// ChannelProfile handles GET /api/v1/users/channel/{username}
func (h *AccountHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.AccountIDFromContext(r.Context())
	profile, err := h.service.GetChannelProfile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, profile, "User channel fetched successfully")
}

// Subscribe handles POST /api/v1/subscriptions/{channelId}
func (h *AccountHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	channelID, ok := httputil.ParseUUID(w, r, "channelId", chi.URLParam(r, "channelId"))
	if !ok {
		return
	}
	if err := h.service.Subscribe(r.Context(), middleware.AccountIDFromContext(r.Context()), channelID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "Subscribed successfully")
}

// Unsubscribe handles DELETE /api/v1/subscriptions/{channelId}
func (h *AccountHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	channelID, ok := httputil.ParseUUID(w, r, "channelId", chi.URLParam(r, "channelId"))
	if !ok {
		return
	}
	if err := h.service.Unsubscribe(r.Context(), middleware.AccountIDFromContext(r.Context()), channelID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "Unsubscribed successfully")
}

// --- Watch history ---

// WatchHistory handles GET /api/v1/users/history
func (h *AccountHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.WatchHistory(r.Context(), middleware.AccountIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, page, "Watch history fetched successfully")
}

// RecordView handles POST /api/v1/videos/{videoId}/views
func (h *AccountHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	videoID, ok := httputil.ParseUUID(w, r, "videoId", chi.URLParam(r, "videoId"))
	if !ok {
		return
	}
	if err := h.service.RecordView(r.Context(), middleware.AccountIDFromContext(r.Context()), videoID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, struct{}{}, "View recorded")
}
