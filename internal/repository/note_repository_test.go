package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"yeenote-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/go-kivik/kivik/v4/driver"
	"github.com/go-kivik/kivik/v4/mockdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDB = "yeenote"

type statusError struct {
	status int
}

func (e statusError) Error() string   { return http.StatusText(e.status) }
func (e statusError) HTTPStatus() int { return e.status }

func newMockDB(t *testing.T) (*kivik.Client, *mockdb.Client, *mockdb.DB) {
	t.Helper()
	client, mock := mockdb.NewT(t)
	db := mock.NewDB()
	mock.ExpectDB().WithName(testDB).WillReturn(db)
	return client, mock, db
}

func docRow(t *testing.T, id string, doc map[string]interface{}) *driver.Row {
	t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	return &driver.Row{ID: id, Doc: strings.NewReader(string(body))}
}

// captureBulk records the documents sent to _bulk_docs as generic JSON maps.
func captureBulk(t *testing.T, db *mockdb.DB, results []driver.BulkResult) *[]map[string]interface{} {
	t.Helper()
	var sent []map[string]interface{}
	db.ExpectBulkDocs().WillExecute(func(_ context.Context, docs []interface{}, _ driver.Options) ([]driver.BulkResult, error) {
		for _, d := range docs {
			body, err := json.Marshal(d)
			if err != nil {
				return nil, err
			}
			var m map[string]interface{}
			if err := json.Unmarshal(body, &m); err != nil {
				return nil, err
			}
			sent = append(sent, m)
		}
		return results, nil
	})
	return &sent
}

func TestNoteListSinceVersion(t *testing.T) {
	client, mock, db := newMockDB(t)
	db.ExpectFind().
		WithQuery(map[string]interface{}{
			"selector": map[string]interface{}{
				"doc_type":     "note",
				"user_id":      "user-1",
				"sync_version": map[string]interface{}{"$gt": 4},
			},
			"limit": findPageSize,
		}).
		WillReturn(mockdb.NewRows().
			AddRow(docRow(t, "note:b", map[string]interface{}{"_rev": "1-b", "doc_type": "note", "id": "b", "user_id": "user-1", "sync_version": 7})).
			AddRow(docRow(t, "note:a", map[string]interface{}{"_rev": "1-a", "doc_type": "note", "id": "a", "user_id": "user-1", "sync_version": 7})).
			AddRow(docRow(t, "note:c", map[string]interface{}{"_rev": "1-c", "doc_type": "note", "id": "c", "user_id": "user-1", "sync_version": 5})))

	repo := NewNoteRepository(client, testDB, 0)
	notes, err := repo.ListSinceVersion(context.Background(), "user-1", 4)
	require.NoError(t, err)

	var ids []string
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteMarkPendingSynced(t *testing.T) {
	client, mock, db := newMockDB(t)
	db.ExpectFind().
		WithQuery(map[string]interface{}{
			"selector": map[string]interface{}{
				"doc_type":    "note",
				"user_id":     "user-1",
				"sync_status": "pending",
			},
			"limit": findPageSize,
		}).
		WillReturn(mockdb.NewRows().
			AddRow(docRow(t, "note:n1", map[string]interface{}{
				"_id": "note:n1", "_rev": "3-abc", "doc_type": "note",
				"id": "n1", "user_id": "user-1", "title": "one",
				"sync_status": "pending", "sync_version": 3,
			})).
			AddRow(docRow(t, "note:n2", map[string]interface{}{
				"_id": "note:n2", "_rev": "1-def", "doc_type": "note",
				"id": "n2", "user_id": "user-1", "title": "two",
				"sync_status": "pending", "sync_version": 1,
			})))
	sent := captureBulk(t, db, []driver.BulkResult{
		{ID: "note:n1", Rev: "4-abc"},
		{ID: "note:n2", Error: statusError{status: http.StatusConflict}},
	})

	repo := NewNoteRepository(client, testDB, 0)
	written, err := repo.MarkPendingSynced(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, written, "rows rewritten concurrently are skipped")

	require.Len(t, *sent, 2)
	first := (*sent)[0]
	assert.Equal(t, "note:n1", first["_id"])
	assert.Equal(t, "3-abc", first["_rev"])
	assert.Equal(t, "note", first["doc_type"])
	assert.Equal(t, string(domain.SyncStatusSynced), first["sync_status"])
	assert.Equal(t, float64(3), first["sync_version"], "acknowledging does not bump the version")
	assert.Equal(t, "one", first["title"])

	second := (*sent)[1]
	assert.Equal(t, "note:n2", second["_id"])
	assert.Equal(t, "1-def", second["_rev"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteMarkPendingSyncedNothingPending(t *testing.T) {
	client, mock, db := newMockDB(t)
	db.ExpectFind().WillReturn(mockdb.NewRows())

	repo := NewNoteRepository(client, testDB, 0)
	written, err := repo.MarkPendingSynced(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.NoError(t, mock.ExpectationsWereMet(), "no bulk write without pending docs")
}

func TestNoteMarkPendingSyncedRowFailure(t *testing.T) {
	client, _, db := newMockDB(t)
	db.ExpectFind().WillReturn(mockdb.NewRows().
		AddRow(docRow(t, "note:n1", map[string]interface{}{"_id": "note:n1", "_rev": "1-a", "id": "n1", "user_id": "user-1", "sync_status": "pending"})))
	captureBulk(t, db, []driver.BulkResult{
		{ID: "note:n1", Error: statusError{status: http.StatusForbidden}},
	})

	repo := NewNoteRepository(client, testDB, 0)
	_, err := repo.MarkPendingSynced(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note:n1")
}

func TestNoteMutateRetriesOnConflict(t *testing.T) {
	client, mock, db := newMockDB(t)
	stored := `{"_id":"note:n1","_rev":"%s","doc_type":"note","id":"n1","user_id":"user-1","title":"old","sync_status":"pending","sync_version":%d}`

	db.ExpectGet().WithDocID("note:n1").WillReturn(mockdb.DocumentT(t, fmt.Sprintf(stored, "1-a", 1)))
	db.ExpectPut().WithDocID("note:n1").WillReturnError(statusError{status: http.StatusConflict})
	db.ExpectGet().WithDocID("note:n1").WillReturn(mockdb.DocumentT(t, fmt.Sprintf(stored, "2-b", 2)))
	db.ExpectPut().WithDocID("note:n1").WillReturn("3-c")

	calls := 0
	repo := NewNoteRepository(client, testDB, 3)
	note, err := repo.Mutate(context.Background(), "n1", func(n *domain.Note) error {
		calls++
		n.Title = "new"
		n.SyncVersion++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "fn is re-applied to the fresh read")
	assert.Equal(t, "new", note.Title)
	assert.Equal(t, int64(3), note.SyncVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteMutateGivesUpAfterRetries(t *testing.T) {
	client, _, db := newMockDB(t)
	doc := `{"_id":"note:n1","_rev":"1-a","doc_type":"note","id":"n1","user_id":"user-1"}`
	for i := 0; i < 2; i++ {
		db.ExpectGet().WithDocID("note:n1").WillReturn(mockdb.DocumentT(t, doc))
		db.ExpectPut().WithDocID("note:n1").WillReturnError(statusError{status: http.StatusConflict})
	}

	repo := NewNoteRepository(client, testDB, 2)
	_, err := repo.Mutate(context.Background(), "n1", func(n *domain.Note) error { return nil })
	assert.ErrorIs(t, err, ErrRevisionConflict)
}

func TestNoteFindByIDNotFound(t *testing.T) {
	client, _, db := newMockDB(t)
	db.ExpectGet().WithDocID("note:ghost").WillReturnError(statusError{status: http.StatusNotFound})

	repo := NewNoteRepository(client, testDB, 0)
	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
