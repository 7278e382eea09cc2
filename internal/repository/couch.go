package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrRevisionConflict = errors.New("document revision conflict")
)

// findPageSize bounds a single Mango round trip. CouchDB caps _find at 25
// rows unless a limit is given, so every listing pages with bookmarks.
const findPageSize = 200

// DefaultMaxWriteRetries is used when a repository is built with a
// non-positive retry budget.
const DefaultMaxWriteRetries = 5

const (
	docTypeUser       = "user"
	docTypeNote       = "note"
	docTypeCategory   = "category"
	docTypeSyncRecord = "sync_record"
)

func docID(docType, id string) string {
	return fmt.Sprintf("%s:%s", docType, id)
}

// classify maps CouchDB status codes onto the package sentinels.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, ErrRevisionConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func retries(n int) int {
	if n <= 0 {
		return DefaultMaxWriteRetries
	}
	return n
}

// findAll runs a Mango selector and drains every page through bookmarks.
// scan is called once per row with the row's result set.
func findAll(ctx context.Context, db *kivik.DB, selector map[string]interface{}, scan func(rows *kivik.ResultSet) error) error {
	bookmark := ""
	for {
		query := map[string]interface{}{
			"selector": selector,
			"limit":    findPageSize,
		}
		if bookmark != "" {
			query["bookmark"] = bookmark
		}

		rows := db.Find(ctx, query)
		n := 0
		for rows.Next() {
			if err := scan(rows); err != nil {
				rows.Close()
				return err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		meta, err := rows.Metadata()
		rows.Close()
		if err != nil {
			return err
		}

		if n < findPageSize || meta == nil || meta.Bookmark == "" || meta.Bookmark == bookmark {
			return nil
		}
		bookmark = meta.Bookmark
	}
}

// EnsureIndexes creates the Mango indexes the sync queries rely on.
// CouchDB treats an identical index definition as a no-op.
func EnsureIndexes(ctx context.Context, client *kivik.Client, dbName string) error {
	db := client.DB(dbName)

	indexes := map[string][]string{
		"by-owner":         {"doc_type", "user_id"},
		"by-owner-status":  {"doc_type", "user_id", "sync_status"},
		"by-owner-version": {"doc_type", "user_id", "sync_version"},
		"by-email":         {"doc_type", "email"},
		"by-username":      {"doc_type", "username"},
	}

	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "yeenote-"+name, name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return nil
}

func isRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}

// bulkWrite saves docs in one _bulk_docs call. Rows rejected with 409 were
// rewritten concurrently and are skipped; any other row failure aborts.
func bulkWrite(ctx context.Context, db *kivik.DB, docs []interface{}, what string) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	results, err := db.BulkDocs(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update %s: %w", what, err)
	}

	written := 0
	for _, res := range results {
		if res.Error == nil {
			written++
			continue
		}
		if kivik.HTTPStatus(res.Error) == http.StatusConflict {
			continue
		}
		return written, fmt.Errorf("failed to bulk update %s %s: %w", what, res.ID, res.Error)
	}

	return written, nil
}
