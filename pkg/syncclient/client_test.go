package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestCredentialsArePerCall(t *testing.T) {
	type seen struct{ auth, device string }
	var got []seen

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, seen{r.Header.Get("Authorization"), r.Header.Get("X-Device-ID")})
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"kind": "note", "notes": []interface{}{}, "last_sync_version": 4},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.PendingChanges(ctx, Credentials{Token: "tok-a", DeviceID: "laptop"}, "note", 4)
	require.NoError(t, err)
	_, err = c.PendingChanges(ctx, Credentials{Token: "tok-b"}, "note", 4)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, seen{"Bearer tok-a", "laptop"}, got[0])
	assert.Equal(t, seen{"Bearer tok-b", ""}, got[1])
}

func TestPendingChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync/pending", r.URL.Path)
		assert.Equal(t, "category", r.URL.Query().Get("kind"))
		assert.Equal(t, "2", r.URL.Query().Get("since"))
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"kind":              "category",
				"categories":        []interface{}{map[string]interface{}{"id": "c1", "name": "Work", "sync_version": 3}},
				"last_sync_version": 3,
			},
		})
	}))
	defer srv.Close()

	changes, err := New(srv.URL).PendingChanges(context.Background(), Credentials{Token: "t"}, "category", 2)
	require.NoError(t, err)
	require.Len(t, changes.Categories, 1)
	assert.Equal(t, "c1", changes.Categories[0].ID)
	assert.Equal(t, int64(3), changes.Categories[0].SyncVersion)
	assert.Equal(t, int64(3), changes.LastSyncVersion)
}

func TestListSyncRecordsDecodesPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"data":       []interface{}{map[string]interface{}{"id": "r1", "status": "completed"}},
			"pagination": map[string]interface{}{"page": 2, "limit": 20, "total": 21, "pages": 2},
		})
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListSyncRecords(context.Background(), Credentials{Token: "t"}, "completed", 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "r1", page.Records[0].ID)
	assert.Equal(t, Pagination{Page: 2, Limit: 20, Total: 21, Pages: 2}, page.Pagination)
}

func TestResolveConflicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Conflicts []Conflict `json:"conflicts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Conflicts, 1)
		assert.Equal(t, "duplicate", body.Conflicts[0].Resolution)

		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{"results": []interface{}{
				map[string]interface{}{"type": "note", "id": "n1", "status": "success", "new_id": "n2"},
			}},
		})
	}))
	defer srv.Close()

	title := "mine"
	results, err := New(srv.URL).ResolveConflicts(context.Background(), Credentials{Token: "t"}, []Conflict{
		{Type: "note", ID: "n1", Resolution: "duplicate", ClientVersion: &ClientVersion{Title: &title}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n2", results[0].NewID)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, map[string]interface{}{"success": false, "error": "nope"})
			}))
			defer srv.Close()

			_, err := New(srv.URL).FullSnapshot(context.Background(), Credentials{Token: "t"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestOtherStatusIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusServiceUnavailable, map[string]interface{}{"success": false, "error": "Storage temporarily unavailable"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateSyncRecord(context.Background(), Credentials{Token: "t"}, &CreateSyncRecordRequest{SyncType: "full", Direction: "upload"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "Storage temporarily unavailable", apiErr.Message)
}
