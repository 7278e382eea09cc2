package service

import (
	"context"
	"fmt"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"
)

// SyncQueryService answers "what changed since version N" and full snapshot
// reads. It never writes.
type SyncQueryService struct {
	userRepo     repository.UserRepository
	noteRepo     repository.NoteRepository
	categoryRepo repository.CategoryRepository
	now          func() time.Time
}

func NewSyncQueryService(
	userRepo repository.UserRepository,
	noteRepo repository.NoteRepository,
	categoryRepo repository.CategoryRepository,
) *SyncQueryService {
	return &SyncQueryService{
		userRepo:     userRepo,
		noteRepo:     noteRepo,
		categoryRepo: categoryRepo,
		now:          time.Now,
	}
}

// PendingChanges returns every entity of kind owned by userID whose sync
// version is above since, oldest version first. Soft-deleted entities are
// included so devices learn about deletions. The watermark is the highest
// version returned, or since when nothing matched.
func (s *SyncQueryService) PendingChanges(ctx context.Context, userID string, kind domain.EntityKind, since int64) (*domain.PendingChanges, error) {
	if _, err := domain.ParseEntityKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if since < 0 {
		since = 0
	}

	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, storageErr(err, "user")
	}

	result := &domain.PendingChanges{Kind: kind, Watermark: since}

	switch kind {
	case domain.KindNote:
		notes, err := s.noteRepo.ListSinceVersion(ctx, userID, since)
		if err != nil {
			return nil, storageErr(err, "pending notes")
		}
		result.Notes = notes
		if result.Notes == nil {
			result.Notes = []*domain.Note{}
		}
		for _, n := range notes {
			if n.SyncVersion > result.Watermark {
				result.Watermark = n.SyncVersion
			}
		}

	case domain.KindCategory:
		categories, err := s.categoryRepo.ListSinceVersion(ctx, userID, since)
		if err != nil {
			return nil, storageErr(err, "pending categories")
		}
		result.Categories = categories
		if result.Categories == nil {
			result.Categories = []*domain.Category{}
		}
		for _, c := range categories {
			if c.SyncVersion > result.Watermark {
				result.Watermark = c.SyncVersion
			}
		}
	}

	return result, nil
}

// FullSnapshot returns all live notes and categories of the user along with
// the highest version of each kind.
func (s *SyncQueryService) FullSnapshot(ctx context.Context, userID string) (*domain.FullSnapshot, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "user")
	}

	categories, err := s.categoryRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "categories")
	}
	notes, err := s.noteRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "notes")
	}

	snapshot := &domain.FullSnapshot{
		User:       user.Summary(),
		Categories: categories,
		Notes:      notes,
		SyncTime:   s.now(),
	}
	if snapshot.Categories == nil {
		snapshot.Categories = []*domain.Category{}
	}
	if snapshot.Notes == nil {
		snapshot.Notes = []*domain.Note{}
	}

	for _, c := range categories {
		if c.SyncVersion > snapshot.SyncVersion.Categories {
			snapshot.SyncVersion.Categories = c.SyncVersion
		}
	}
	for _, n := range notes {
		if n.SyncVersion > snapshot.SyncVersion.Notes {
			snapshot.SyncVersion.Notes = n.SyncVersion
		}
	}

	return snapshot, nil
}
