package service

import (
	"context"
	"log"

	"yeenote-sync-server/internal/repository"
)

// reconciler flips a user's pending notes and categories to synced once a
// sync session has completed. failed entities and versions are untouched.
type reconciler struct {
	noteRepo     repository.NoteRepository
	categoryRepo repository.CategoryRepository
}

func (r *reconciler) reconcile(ctx context.Context, userID string) error {
	notes, err := r.noteRepo.MarkPendingSynced(ctx, userID)
	if err != nil {
		return storageErr(err, "reconcile notes")
	}

	categories, err := r.categoryRepo.MarkPendingSynced(ctx, userID)
	if err != nil {
		return storageErr(err, "reconcile categories")
	}

	log.Printf("[Sync] Reconciled user %s: %d notes, %d categories", userID, notes, categories)
	return nil
}
