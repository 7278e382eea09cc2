package handler

import (
	"context"
	"net/http"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type SyncQuerier interface {
	PendingChanges(ctx context.Context, userID string, kind domain.EntityKind, since int64) (*domain.PendingChanges, error)
	FullSnapshot(ctx context.Context, userID string) (*domain.FullSnapshot, error)
}

type SyncRecorder interface {
	Create(ctx context.Context, userID string, req *domain.CreateSyncRecordRequest) (*domain.SyncRecord, error)
	Update(ctx context.Context, userID, id string, req *domain.UpdateSyncRecordRequest) (*domain.SyncRecord, error)
	Get(ctx context.Context, userID, id string) (*domain.SyncRecord, error)
	List(ctx context.Context, userID string, filter domain.SyncRecordFilter) (*domain.SyncRecordList, error)
}

type ConflictResolver interface {
	ResolveBatch(ctx context.Context, userID string, conflicts []domain.Conflict) ([]domain.ConflictResult, error)
}

type SyncHandler struct {
	queries   SyncQuerier
	records   SyncRecorder
	conflicts ConflictResolver
	validate  *validator.Validate
}

func NewSyncHandler(queries SyncQuerier, records SyncRecorder, conflicts ConflictResolver) *SyncHandler {
	return &SyncHandler{
		queries:   queries,
		records:   records,
		conflicts: conflicts,
		validate:  validator.New(),
	}
}

func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := domain.ParseEntityKind(q.Get("kind"))
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	h.pending(w, r, kind, "since")
}

// PendingNotes and PendingCategories serve the per-kind routes, which take
// the watermark as lastSyncVersion.
func (h *SyncHandler) PendingNotes(w http.ResponseWriter, r *http.Request) {
	h.pending(w, r, domain.KindNote, "lastSyncVersion")
}

func (h *SyncHandler) PendingCategories(w http.ResponseWriter, r *http.Request) {
	h.pending(w, r, domain.KindCategory, "lastSyncVersion")
}

func (h *SyncHandler) pending(w http.ResponseWriter, r *http.Request, kind domain.EntityKind, sinceParam string) {
	since, err := queryInt64(r.URL.Query(), sinceParam)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	changes, err := h.queries.PendingChanges(r.Context(), userID, kind, since)
	if err != nil {
		writeError(w, err, "Failed to load pending changes")
		return
	}

	response.Success(w, changes)
}

func (h *SyncHandler) Full(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	snapshot, err := h.queries.FullSnapshot(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to build snapshot")
		return
	}

	response.Success(w, snapshot)
}

func (h *SyncHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSyncRecordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	record, err := h.records.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create sync record")
		return
	}

	response.Created(w, record)
}

func (h *SyncHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSyncRecordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	record, err := h.records.Update(r.Context(), userID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, err, "Failed to update sync record")
		return
	}

	response.Success(w, record)
}

func (h *SyncHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	record, err := h.records.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, "Failed to load sync record")
		return
	}

	response.Success(w, record)
}

func (h *SyncHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SyncRecordFilter{Status: domain.SyncRecordStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		response.BadRequest(w, "invalid status: "+string(filter.Status))
		return
	}

	var err error
	if filter.Page, err = queryInt(q, "page"); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	list, err := h.records.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err, "Failed to list sync records")
		return
	}

	response.Paginated(w, list.Records, list.Pagination)
}

func (h *SyncHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var req domain.ResolveConflictsRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	userID := middleware.GetUserID(r)

	results, err := h.conflicts.ResolveBatch(r.Context(), userID, req.Conflicts)
	if err != nil {
		writeError(w, err, "Failed to resolve conflicts")
		return
	}

	response.Success(w, map[string]interface{}{"results": results})
}
