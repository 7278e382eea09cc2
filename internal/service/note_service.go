package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultNotesPage  = 1
	defaultNotesLimit = 20
	maxNotesLimit     = 100
)

type NoteService struct {
	repo         repository.NoteRepository
	categoryRepo repository.CategoryRepository
	images       *ImageStore
	notifier     Notifier
	now          func() time.Time
}

func NewNoteService(
	repo repository.NoteRepository,
	categoryRepo repository.CategoryRepository,
	images *ImageStore,
	notifier Notifier,
) *NoteService {
	return &NoteService{
		repo:         repo,
		categoryRepo: categoryRepo,
		images:       images,
		notifier:     notifierOrNop(notifier),
		now:          time.Now,
	}
}

func (s *NoteService) Create(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.Note, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.Content) == "" {
		return nil, validationf("title and content are required")
	}
	if err := checkCategoryOwner(ctx, s.categoryRepo, userID, req.CategoryID); err != nil {
		return nil, err
	}

	note := &domain.Note{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      title,
		Content:    req.Content,
		Tags:       req.Tags,
		IsPinned:   req.IsPinned,
		IsArchived: req.IsArchived,
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		id := *req.CategoryID
		note.CategoryID = &id
	}
	note.Init(s.now())

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, storageErr(err, "create note")
	}

	s.changed(ctx, note)
	return note, nil
}

func (s *NoteService) List(ctx context.Context, userID string, filter domain.NoteFilter) ([]*domain.Note, domain.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = defaultNotesPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultNotesLimit
	}
	if filter.Limit > maxNotesLimit {
		filter.Limit = maxNotesLimit
	}

	notes, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, domain.Pagination{}, storageErr(err, "list notes")
	}
	if notes == nil {
		notes = []*domain.Note{}
	}

	return notes, domain.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *NoteService) GetByID(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, storageErr(err, "note")
	}
	if note.UserID != userID {
		return nil, fmt.Errorf("note %s: %w", noteID, ErrNotFound)
	}
	return note, nil
}

// mutate runs fn on the caller's note and records the write as a new
// version.
func (s *NoteService) mutate(ctx context.Context, userID, noteID string, fn func(*domain.Note) error) (*domain.Note, error) {
	note, err := s.repo.Mutate(ctx, noteID, func(n *domain.Note) error {
		if n.UserID != userID {
			return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
		}
		if err := fn(n); err != nil {
			return err
		}
		n.ApplyMutation(s.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, storageErr(err, "note")
	}

	s.changed(ctx, note)
	return note, nil
}

func (s *NoteService) Update(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if req.Empty() {
		return nil, validationf("no fields to update")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, validationf("title must not be empty")
	}
	if err := checkCategoryOwner(ctx, s.categoryRepo, userID, req.CategoryID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, noteID, func(n *domain.Note) error {
		req.Apply(n)
		return nil
	})
}

// Delete is a soft delete so the removal reaches other devices as a
// versioned change.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	_, err := s.mutate(ctx, userID, noteID, func(n *domain.Note) error {
		n.IsDeleted = true
		return nil
	})
	return err
}

func (s *NoteService) Restore(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	return s.mutate(ctx, userID, noteID, func(n *domain.Note) error {
		if !n.IsDeleted {
			return validationf("note is not deleted")
		}
		n.IsDeleted = false
		return nil
	})
}

// AddImages stores every file first and then attaches all of them in one
// write. Files already stored are removed again if the write fails.
func (s *NoteService) AddImages(ctx context.Context, userID, noteID string, files []ImageFile) ([]domain.NoteImage, error) {
	if len(files) == 0 {
		return nil, validationf("no images provided")
	}
	if _, err := s.GetByID(ctx, userID, noteID); err != nil {
		return nil, err
	}

	added := make([]domain.NoteImage, 0, len(files))
	for _, f := range files {
		img, err := s.images.Save(ctx, userID, f)
		if err != nil {
			s.discard(ctx, userID, added)
			return nil, err
		}
		added = append(added, *img)
	}

	if _, err := s.mutate(ctx, userID, noteID, func(n *domain.Note) error {
		n.Images = append(n.Images, added...)
		return nil
	}); err != nil {
		s.discard(ctx, userID, added)
		return nil, err
	}

	return added, nil
}

func (s *NoteService) DeleteImage(ctx context.Context, userID, noteID string, index int) error {
	var removed domain.NoteImage
	_, err := s.mutate(ctx, userID, noteID, func(n *domain.Note) error {
		if index < 0 || index >= len(n.Images) {
			return validationf("invalid image index %d", index)
		}
		removed = n.Images[index]
		n.Images = append(n.Images[:index:index], n.Images[index+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(ctx, userID, []domain.NoteImage{removed})
	return nil
}

func (s *NoteService) discard(ctx context.Context, userID string, images []domain.NoteImage) {
	for _, img := range images {
		if err := s.images.Remove(ctx, userID, img.Filename); err != nil {
			log.Printf("[Notes] Failed to remove image %s: %v", img.Filename, err)
		}
	}
}

func (s *NoteService) changed(ctx context.Context, note *domain.Note) {
	s.notifier.EntityChanged(note.UserID, domain.DeviceIDFrom(ctx), domain.KindNote, note.ID, note.SyncVersion, note.IsDeleted)
}
