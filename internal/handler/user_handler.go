package handler

import (
	"net/http"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService *service.UserService
	validate    *validator.Validate
	limits      UploadLimits
}

func NewUserHandler(userService *service.UserService, limits UploadLimits) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
		limits:      limits,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to load user")
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to update profile")
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateSyncSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req domain.SyncSettingsRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	user, err := h.userService.UpdateSyncSettings(r.Context(), userID, *req.SyncEnabled)
	if err != nil {
		writeError(w, err, "Failed to update sync settings")
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	limits := h.limits
	limits.MaxFiles = 1
	files, cleanup, ok := readImages(w, r, "avatar", limits)
	if !ok {
		return
	}
	defer cleanup()

	user, err := h.userService.UpdateAvatar(r.Context(), userID, files[0])
	if err != nil {
		writeError(w, err, "Failed to upload avatar")
		return
	}

	response.Success(w, user)
}
