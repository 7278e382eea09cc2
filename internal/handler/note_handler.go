package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	limits   UploadLimits
}

func NewNoteHandler(service *service.NoteService, limits UploadLimits) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		limits:   limits,
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create note")
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNoteFilter(r.URL.Query())
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	notes, pagination, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err, "Failed to list notes")
		return
	}

	response.Paginated(w, notes, pagination)
}

func parseNoteFilter(q url.Values) (domain.NoteFilter, error) {
	filter := domain.NoteFilter{
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	}

	var err error
	if filter.Page, err = queryInt(q, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Pinned, err = queryBool(q, "pinned"); err != nil {
		return filter, err
	}
	if filter.Archived, err = queryBool(q, "archived"); err != nil {
		return filter, err
	}
	deleted, err := queryBool(q, "deleted")
	if err != nil {
		return filter, err
	}
	filter.Deleted = deleted != nil && *deleted

	return filter, nil
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	note, err := h.service.GetByID(r.Context(), userID, noteID)
	if err != nil {
		writeError(w, err, "Failed to load note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]

	var req domain.UpdateNoteRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Update(r.Context(), userID, noteID, &req)
	if err != nil {
		writeError(w, err, "Failed to update note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	if err := h.service.Delete(r.Context(), userID, noteID); err != nil {
		writeError(w, err, "Failed to delete note")
		return
	}

	response.Message(w, "Note deleted successfully")
}

func (h *NoteHandler) Restore(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	note, err := h.service.Restore(r.Context(), userID, noteID)
	if err != nil {
		writeError(w, err, "Failed to restore note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r)

	files, cleanup, ok := readImages(w, r, "images", h.limits)
	if !ok {
		return
	}
	defer cleanup()

	images, err := h.service.AddImages(r.Context(), userID, noteID, files)
	if err != nil {
		writeError(w, err, "Failed to upload images")
		return
	}

	response.Created(w, images)
}

func (h *NoteHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		response.BadRequest(w, "Invalid image index")
		return
	}

	userID := middleware.GetUserID(r)

	if err := h.service.DeleteImage(r.Context(), userID, vars["id"], index); err != nil {
		writeError(w, err, "Failed to delete image")
		return
	}

	response.Message(w, "Image deleted successfully")
}
