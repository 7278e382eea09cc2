package repository

import (
	"context"
	"fmt"
	"sort"

	"yeenote-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type SyncRecordRepository interface {
	Create(ctx context.Context, record *domain.SyncRecord) error
	FindByID(ctx context.Context, id string) (*domain.SyncRecord, error)
	// Mutate re-runs fn on a fresh read whenever the write loses a
	// revision race, so fn must tolerate being called more than once.
	Mutate(ctx context.Context, id string, fn func(*domain.SyncRecord) error) (*domain.SyncRecord, error)
	List(ctx context.Context, userID string, filter domain.SyncRecordFilter) ([]*domain.SyncRecord, int, error)
}

type syncRecordDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.SyncRecord
}

type syncRecordRepository struct {
	client     *kivik.Client
	dbName     string
	maxRetries int
}

func NewSyncRecordRepository(client *kivik.Client, dbName string, maxRetries int) SyncRecordRepository {
	return &syncRecordRepository{
		client:     client,
		dbName:     dbName,
		maxRetries: retries(maxRetries),
	}
}

func (r *syncRecordRepository) Create(ctx context.Context, record *domain.SyncRecord) error {
	db := r.client.DB(r.dbName)

	doc := syncRecordDoc{DocType: docTypeSyncRecord, SyncRecord: *record}
	if _, err := db.Put(ctx, docID(docTypeSyncRecord, record.ID), doc); err != nil {
		return classify(err, "failed to create sync record")
	}

	return nil
}

func (r *syncRecordRepository) get(ctx context.Context, db *kivik.DB, id string) (*syncRecordDoc, error) {
	var doc syncRecordDoc
	if err := db.Get(ctx, docID(docTypeSyncRecord, id)).ScanDoc(&doc); err != nil {
		return nil, classify(err, "failed to find sync record")
	}
	return &doc, nil
}

func (r *syncRecordRepository) FindByID(ctx context.Context, id string) (*domain.SyncRecord, error) {
	doc, err := r.get(ctx, r.client.DB(r.dbName), id)
	if err != nil {
		return nil, err
	}
	return &doc.SyncRecord, nil
}

func (r *syncRecordRepository) Mutate(ctx context.Context, id string, fn func(*domain.SyncRecord) error) (*domain.SyncRecord, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		doc, err := r.get(ctx, db, id)
		if err != nil {
			return nil, err
		}

		if err := fn(&doc.SyncRecord); err != nil {
			return nil, err
		}

		doc.DocType = docTypeSyncRecord
		if _, err := db.Put(ctx, docID(docTypeSyncRecord, id), doc); err == nil {
			return &doc.SyncRecord, nil
		} else if err := classify(err, "failed to save sync record"); !isRevisionConflict(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to save sync record %s after %d attempts: %w", id, r.maxRetries, ErrRevisionConflict)
}

func (r *syncRecordRepository) List(ctx context.Context, userID string, filter domain.SyncRecordFilter) ([]*domain.SyncRecord, int, error) {
	db := r.client.DB(r.dbName)

	selector := map[string]interface{}{
		"doc_type": docTypeSyncRecord,
		"user_id":  userID,
	}
	if filter.Status != "" {
		selector["status"] = filter.Status
	}

	var records []*domain.SyncRecord
	err := findAll(ctx, db, selector, func(rows *kivik.ResultSet) error {
		var doc syncRecordDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		record := doc.SyncRecord
		records = append(records, &record)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= total {
		return []*domain.SyncRecord{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	return records[start:end], total, nil
}
