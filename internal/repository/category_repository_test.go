package repository

import (
	"context"
	"testing"

	"github.com/go-kivik/kivik/v4/driver"
	"github.com/go-kivik/kivik/v4/mockdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryListSinceVersion(t *testing.T) {
	client, mock, db := newMockDB(t)
	db.ExpectFind().
		WithQuery(map[string]interface{}{
			"selector": map[string]interface{}{
				"doc_type":     "category",
				"user_id":      "user-1",
				"sync_version": map[string]interface{}{"$gt": 0},
			},
			"limit": findPageSize,
		}).
		WillReturn(mockdb.NewRows().
			AddRow(docRow(t, "category:c2", map[string]interface{}{"doc_type": "category", "id": "c2", "user_id": "user-1", "name": "Home", "sync_version": 3})).
			AddRow(docRow(t, "category:c1", map[string]interface{}{"doc_type": "category", "id": "c1", "user_id": "user-1", "name": "Work", "sync_version": 1})))

	repo := NewCategoryRepository(client, testDB, 0)
	categories, err := repo.ListSinceVersion(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "c1", categories[0].ID)
	assert.Equal(t, "c2", categories[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryMarkPendingSynced(t *testing.T) {
	client, mock, db := newMockDB(t)
	db.ExpectFind().
		WithQuery(map[string]interface{}{
			"selector": map[string]interface{}{
				"doc_type":    "category",
				"user_id":     "user-1",
				"sync_status": "pending",
			},
			"limit": findPageSize,
		}).
		WillReturn(mockdb.NewRows().
			AddRow(docRow(t, "category:c1", map[string]interface{}{
				"_id": "category:c1", "_rev": "2-xyz", "doc_type": "category",
				"id": "c1", "user_id": "user-1", "name": "Work",
				"sync_status": "pending", "sync_version": 2,
			})))
	sent := captureBulk(t, db, []driver.BulkResult{{ID: "category:c1", Rev: "3-xyz"}})

	repo := NewCategoryRepository(client, testDB, 0)
	written, err := repo.MarkPendingSynced(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	require.Len(t, *sent, 1)
	doc := (*sent)[0]
	assert.Equal(t, "category:c1", doc["_id"])
	assert.Equal(t, "2-xyz", doc["_rev"])
	assert.Equal(t, "synced", doc["sync_status"])
	assert.Equal(t, float64(2), doc["sync_version"])
	assert.Equal(t, "Work", doc["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
