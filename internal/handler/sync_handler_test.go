package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/service"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	gotKind  domain.EntityKind
	gotSince int64
	err      error
}

func (f *fakeQueries) PendingChanges(ctx context.Context, userID string, kind domain.EntityKind, since int64) (*domain.PendingChanges, error) {
	f.gotKind, f.gotSince = kind, since
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PendingChanges{Kind: kind, Watermark: since}, nil
}

func (f *fakeQueries) FullSnapshot(ctx context.Context, userID string) (*domain.FullSnapshot, error) {
	return &domain.FullSnapshot{Notes: []*domain.Note{}, Categories: []*domain.Category{}}, nil
}

type fakeRecords struct {
	err error
}

func (f *fakeRecords) Create(ctx context.Context, userID string, req *domain.CreateSyncRecordRequest) (*domain.SyncRecord, error) {
	return &domain.SyncRecord{ID: "r1", UserID: userID, SyncType: req.SyncType, Direction: req.Direction, Status: domain.SyncRecordPending}, nil
}

func (f *fakeRecords) Update(ctx context.Context, userID, id string, req *domain.UpdateSyncRecordRequest) (*domain.SyncRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SyncRecord{ID: id, UserID: userID, Status: *req.Status}, nil
}

func (f *fakeRecords) Get(ctx context.Context, userID, id string) (*domain.SyncRecord, error) {
	return nil, fmt.Errorf("sync record %s: %w", id, service.ErrNotFound)
}

func (f *fakeRecords) List(ctx context.Context, userID string, filter domain.SyncRecordFilter) (*domain.SyncRecordList, error) {
	return &domain.SyncRecordList{Records: []*domain.SyncRecord{}, Pagination: domain.NewPagination(1, 20, 0)}, nil
}

type fakeResolver struct {
	calls int
}

func (f *fakeResolver) ResolveBatch(ctx context.Context, userID string, conflicts []domain.Conflict) ([]domain.ConflictResult, error) {
	f.calls++
	results := make([]domain.ConflictResult, len(conflicts))
	for i, c := range conflicts {
		results[i] = domain.ConflictResult{Type: c.Type, ID: c.ID, Status: domain.ConflictResultSuccess}
	}
	return results, nil
}

func newSyncRouter(q *fakeQueries, rec *fakeRecords, res *fakeResolver) http.Handler {
	h := NewSyncHandler(q, rec, res)
	r := mux.NewRouter()
	r.HandleFunc("/sync/pending", h.Pending).Methods("GET")
	r.HandleFunc("/notes/sync/pending", h.PendingNotes).Methods("GET")
	r.HandleFunc("/sync/full", h.Full).Methods("GET")
	r.HandleFunc("/sync/records", h.CreateRecord).Methods("POST")
	r.HandleFunc("/sync/records", h.ListRecords).Methods("GET")
	r.HandleFunc("/sync/records/{id}", h.UpdateRecord).Methods("PATCH", "PUT")
	r.HandleFunc("/sync/records/{id}", h.GetRecord).Methods("GET")
	r.HandleFunc("/sync/resolve-conflicts", h.ResolveConflicts).Methods("POST")
	return r
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestResolveConflictsRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty list", `{"conflicts": []}`},
		{"missing list", `{}`},
		{"not a list", `{"conflicts": "oops"}`},
		{"malformed json", `{"conflicts": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{}
			router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, res)

			w, out := do(t, router, "POST", "/sync/resolve-conflicts", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, out["success"])
			assert.Zero(t, res.calls)
		})
	}
}

func TestResolveConflictsReturnsResultsInOrder(t *testing.T) {
	router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, &fakeResolver{})

	body := `{"conflicts": [
		{"type": "note", "id": "a", "resolution": "useServer"},
		{"type": "category", "id": "b", "resolution": "useServer"}
	]}`
	w, out := do(t, router, "POST", "/sync/resolve-conflicts", body)
	require.Equal(t, http.StatusOK, w.Code)

	results := out["data"].(map[string]interface{})["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].(map[string]interface{})["id"])
	assert.Equal(t, "b", results[1].(map[string]interface{})["id"])
}

func TestPendingParsesKindAndSince(t *testing.T) {
	q := &fakeQueries{}
	router := newSyncRouter(q, &fakeRecords{}, &fakeResolver{})

	w, out := do(t, router, "GET", "/sync/pending?kind=category&since=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.KindCategory, q.gotKind)
	assert.Equal(t, int64(7), q.gotSince)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["last_sync_version"])
	assert.Equal(t, []interface{}{}, data["categories"])
	assert.NotContains(t, data, "notes")
}

func TestPendingNotesUsesLastSyncVersion(t *testing.T) {
	q := &fakeQueries{}
	router := newSyncRouter(q, &fakeRecords{}, &fakeResolver{})

	w, _ := do(t, router, "GET", "/notes/sync/pending?lastSyncVersion=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.KindNote, q.gotKind)
	assert.Equal(t, int64(3), q.gotSince)
}

func TestPendingRejectsBadQuery(t *testing.T) {
	router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, &fakeResolver{})

	for _, target := range []string{
		"/sync/pending?kind=folder&since=1",
		"/sync/pending?since=1",
		"/sync/pending?kind=note&since=abc",
	} {
		w, _ := do(t, router, "GET", target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestSyncErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("sync record x: %w", service.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: cannot leave completed", service.ErrValidation), http.StatusBadRequest},
		{"storage", fmt.Errorf("%w: reconcile", service.ErrStorage), http.StatusServiceUnavailable},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newSyncRouter(&fakeQueries{}, &fakeRecords{err: tt.err}, &fakeResolver{})
			w, _ := do(t, router, "PATCH", "/sync/records/r1", `{"status": "completed"}`)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCreateRecordValidatesEnums(t *testing.T) {
	router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, &fakeResolver{})

	w, _ := do(t, router, "POST", "/sync/records", `{"sync_type": "weekly", "direction": "upload"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := do(t, router, "POST", "/sync/records", `{"sync_type": "full", "direction": "upload"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending", out["data"].(map[string]interface{})["status"])
}

func TestGetRecordNotFound(t *testing.T) {
	router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, &fakeResolver{})

	w, _ := do(t, router, "GET", "/sync/records/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRecordsRejectsUnknownStatus(t *testing.T) {
	router := newSyncRouter(&fakeQueries{}, &fakeRecords{}, &fakeResolver{})

	w, _ := do(t, router, "GET", "/sync/records?status=done", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := do(t, router, "GET", "/sync/records?status=completed", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out, "pagination")
}
