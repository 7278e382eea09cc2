package repository

import (
	"context"
	"fmt"
	"sort"

	"yeenote-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	CreateMany(ctx context.Context, categories []*domain.Category) error
	FindByID(ctx context.Context, id string) (*domain.Category, error)
	FindByName(ctx context.Context, userID, name string) (*domain.Category, error)
	ListActive(ctx context.Context, userID string) ([]*domain.Category, error)
	ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Category, error)
	Mutate(ctx context.Context, id string, fn func(*domain.Category) error) (*domain.Category, error)
	MarkPendingSynced(ctx context.Context, userID string) (int, error)
}

type categoryDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Category
}

type categoryRepository struct {
	client     *kivik.Client
	dbName     string
	maxRetries int
}

func NewCategoryRepository(client *kivik.Client, dbName string, maxRetries int) CategoryRepository {
	return &categoryRepository{
		client:     client,
		dbName:     dbName,
		maxRetries: retries(maxRetries),
	}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	db := r.client.DB(r.dbName)

	doc := categoryDoc{DocType: docTypeCategory, Category: *category}
	if _, err := db.Put(ctx, docID(docTypeCategory, category.ID), doc); err != nil {
		return classify(err, "failed to create category")
	}

	return nil
}

func (r *categoryRepository) CreateMany(ctx context.Context, categories []*domain.Category) error {
	db := r.client.DB(r.dbName)

	docs := make([]interface{}, 0, len(categories))
	for _, c := range categories {
		docs = append(docs, struct {
			ID string `json:"_id"`
			categoryDoc
		}{
			ID:          docID(docTypeCategory, c.ID),
			categoryDoc: categoryDoc{DocType: docTypeCategory, Category: *c},
		})
	}

	results, err := db.BulkDocs(ctx, docs)
	if err != nil {
		return classify(err, "failed to create categories")
	}
	for _, res := range results {
		if res.Error != nil {
			return classify(res.Error, "failed to create category "+res.ID)
		}
	}

	return nil
}

func (r *categoryRepository) get(ctx context.Context, db *kivik.DB, id string) (*categoryDoc, error) {
	var doc categoryDoc
	if err := db.Get(ctx, docID(docTypeCategory, id)).ScanDoc(&doc); err != nil {
		return nil, classify(err, "failed to find category")
	}
	return &doc, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id string) (*domain.Category, error) {
	doc, err := r.get(ctx, r.client.DB(r.dbName), id)
	if err != nil {
		return nil, err
	}
	return &doc.Category, nil
}

func (r *categoryRepository) find(ctx context.Context, selector map[string]interface{}) ([]*domain.Category, error) {
	db := r.client.DB(r.dbName)
	selector["doc_type"] = docTypeCategory

	var categories []*domain.Category
	err := findAll(ctx, db, selector, func(rows *kivik.ResultSet) error {
		var doc categoryDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		category := doc.Category
		categories = append(categories, &category)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *categoryRepository) FindByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	categories, err := r.find(ctx, map[string]interface{}{
		"user_id":    userID,
		"name":       name,
		"is_deleted": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query category by name: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	return categories[0], nil
}

func (r *categoryRepository) ListActive(ctx context.Context, userID string) ([]*domain.Category, error) {
	categories, err := r.find(ctx, map[string]interface{}{
		"user_id":    userID,
		"is_deleted": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].CreatedAt.Before(categories[j].CreatedAt)
	})

	return categories, nil
}

func (r *categoryRepository) ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Category, error) {
	categories, err := r.find(ctx, map[string]interface{}{
		"user_id":      userID,
		"sync_version": map[string]interface{}{"$gt": since},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories since version %d: %w", since, err)
	}

	SortCategoriesByVersion(categories)
	return categories, nil
}

// SortCategoriesByVersion orders categories by ascending sync version, then id.
func SortCategoriesByVersion(categories []*domain.Category) {
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].SyncVersion != categories[j].SyncVersion {
			return categories[i].SyncVersion < categories[j].SyncVersion
		}
		return categories[i].ID < categories[j].ID
	})
}

func (r *categoryRepository) Mutate(ctx context.Context, id string, fn func(*domain.Category) error) (*domain.Category, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		doc, err := r.get(ctx, db, id)
		if err != nil {
			return nil, err
		}

		if err := fn(&doc.Category); err != nil {
			return nil, err
		}

		doc.DocType = docTypeCategory
		rev, err := db.Put(ctx, docID(docTypeCategory, id), doc)
		if err == nil {
			doc.Rev = rev
			return &doc.Category, nil
		}
		if err := classify(err, "failed to update category"); !isRevisionConflict(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to update category %s after %d attempts: %w", id, r.maxRetries, ErrRevisionConflict)
}

func (r *categoryRepository) MarkPendingSynced(ctx context.Context, userID string) (int, error) {
	db := r.client.DB(r.dbName)

	var docs []interface{}
	err := findAll(ctx, db, map[string]interface{}{
		"doc_type":    docTypeCategory,
		"user_id":     userID,
		"sync_status": domain.SyncStatusPending,
	}, func(rows *kivik.ResultSet) error {
		var doc struct {
			ID string `json:"_id"`
			categoryDoc
		}
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		doc.Category.MarkSynced()
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query pending categories: %w", err)
	}

	return bulkWrite(ctx, db, docs, "categories")
}
