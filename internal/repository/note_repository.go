package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"yeenote-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	List(ctx context.Context, userID string, filter domain.NoteFilter) ([]*domain.Note, int, error)
	ListActive(ctx context.Context, userID string) ([]*domain.Note, error)
	ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Note, error)
	CountByCategory(ctx context.Context, userID, categoryID string) (int, error)
	// Mutate loads the note, applies fn and writes it back against the read
	// revision, re-reading and re-applying fn when another writer got there
	// first.
	Mutate(ctx context.Context, id string, fn func(*domain.Note) error) (*domain.Note, error)
	MarkPendingSynced(ctx context.Context, userID string) (int, error)
}

type noteDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Note
}

type noteRepository struct {
	client     *kivik.Client
	dbName     string
	maxRetries int
}

func NewNoteRepository(client *kivik.Client, dbName string, maxRetries int) NoteRepository {
	return &noteRepository{
		client:     client,
		dbName:     dbName,
		maxRetries: retries(maxRetries),
	}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	db := r.client.DB(r.dbName)

	doc := noteDoc{DocType: docTypeNote, Note: *note}
	if _, err := db.Put(ctx, docID(docTypeNote, note.ID), doc); err != nil {
		return classify(err, "failed to create note")
	}

	return nil
}

func (r *noteRepository) get(ctx context.Context, db *kivik.DB, id string) (*noteDoc, error) {
	var doc noteDoc
	if err := db.Get(ctx, docID(docTypeNote, id)).ScanDoc(&doc); err != nil {
		return nil, classify(err, "failed to find note")
	}
	return &doc, nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, r.client.DB(r.dbName), id)
	if err != nil {
		return nil, err
	}
	return &doc.Note, nil
}

func (r *noteRepository) find(ctx context.Context, selector map[string]interface{}) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)
	selector["doc_type"] = docTypeNote

	var notes []*domain.Note
	err := findAll(ctx, db, selector, func(rows *kivik.ResultSet) error {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		note := doc.Note
		notes = append(notes, &note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return notes, nil
}

func (r *noteRepository) List(ctx context.Context, userID string, filter domain.NoteFilter) ([]*domain.Note, int, error) {
	selector := map[string]interface{}{
		"user_id":    userID,
		"is_deleted": filter.Deleted,
	}
	if filter.CategoryID != "" {
		selector["category_id"] = filter.CategoryID
	}
	if filter.Pinned != nil {
		selector["is_pinned"] = *filter.Pinned
	}
	if filter.Archived != nil {
		selector["is_archived"] = *filter.Archived
	}
	if filter.Search != "" {
		pattern := "(?i)" + regexp.QuoteMeta(filter.Search)
		selector["$or"] = []interface{}{
			map[string]interface{}{"title": map[string]interface{}{"$regex": pattern}},
			map[string]interface{}{"content": map[string]interface{}{"$regex": pattern}},
			map[string]interface{}{"tags": map[string]interface{}{
				"$elemMatch": map[string]interface{}{"$regex": pattern},
			}},
		}
	}

	notes, err := r.find(ctx, selector)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}

	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].IsPinned != notes[j].IsPinned {
			return notes[i].IsPinned
		}
		return notes[i].LastModified.After(notes[j].LastModified)
	})

	total := len(notes)
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= total {
		return []*domain.Note{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	return notes[start:end], total, nil
}

func (r *noteRepository) ListActive(ctx context.Context, userID string) ([]*domain.Note, error) {
	notes, err := r.find(ctx, map[string]interface{}{
		"user_id":    userID,
		"is_deleted": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].LastModified.After(notes[j].LastModified)
	})

	return notes, nil
}

func (r *noteRepository) ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Note, error) {
	notes, err := r.find(ctx, map[string]interface{}{
		"user_id":      userID,
		"sync_version": map[string]interface{}{"$gt": since},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes since version %d: %w", since, err)
	}

	SortNotesByVersion(notes)
	return notes, nil
}

// SortNotesByVersion orders notes by ascending sync version, then id.
func SortNotesByVersion(notes []*domain.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].SyncVersion != notes[j].SyncVersion {
			return notes[i].SyncVersion < notes[j].SyncVersion
		}
		return notes[i].ID < notes[j].ID
	})
}

func (r *noteRepository) CountByCategory(ctx context.Context, userID, categoryID string) (int, error) {
	notes, err := r.find(ctx, map[string]interface{}{
		"user_id":     userID,
		"category_id": categoryID,
		"is_deleted":  false,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return len(notes), nil
}

func (r *noteRepository) Mutate(ctx context.Context, id string, fn func(*domain.Note) error) (*domain.Note, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		doc, err := r.get(ctx, db, id)
		if err != nil {
			return nil, err
		}

		if err := fn(&doc.Note); err != nil {
			return nil, err
		}

		doc.DocType = docTypeNote
		rev, err := db.Put(ctx, docID(docTypeNote, id), doc)
		if err == nil {
			doc.Rev = rev
			return &doc.Note, nil
		}
		if err := classify(err, "failed to update note"); !isRevisionConflict(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to update note %s after %d attempts: %w", id, r.maxRetries, ErrRevisionConflict)
}

func (r *noteRepository) MarkPendingSynced(ctx context.Context, userID string) (int, error) {
	db := r.client.DB(r.dbName)

	var docs []interface{}
	err := findAll(ctx, db, map[string]interface{}{
		"doc_type":    docTypeNote,
		"user_id":     userID,
		"sync_status": domain.SyncStatusPending,
	}, func(rows *kivik.ResultSet) error {
		var doc struct {
			ID string `json:"_id"`
			noteDoc
		}
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		doc.Note.MarkSynced()
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query pending notes: %w", err)
	}

	return bulkWrite(ctx, db, docs, "notes")
}
