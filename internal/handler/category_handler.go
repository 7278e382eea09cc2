package handler

import (
	"net/http"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type CategoryHandler struct {
	service  *service.CategoryService
	validate *validator.Validate
}

func NewCategoryHandler(service *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCategoryRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	category, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create category")
		return
	}

	response.Created(w, category)
}

func (h *CategoryHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchCreateCategoriesRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	categories, err := h.service.CreateBatch(r.Context(), userID, req.Categories)
	if err != nil {
		writeError(w, err, "Failed to create categories")
		return
	}

	response.Created(w, categories)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	categories, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to list categories")
		return
	}

	response.Success(w, categories)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	category, err := h.service.GetByID(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "Failed to load category")
		return
	}

	response.Success(w, category)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCategoryRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	category, err := h.service.Update(r.Context(), userID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, err, "Failed to update category")
		return
	}

	response.Success(w, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := h.service.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err, "Failed to delete category")
		return
	}

	response.Message(w, "Category deleted successfully")
}
