package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"

	"github.com/google/uuid"
)

type CategoryService struct {
	repo     repository.CategoryRepository
	noteRepo repository.NoteRepository
	notifier Notifier
	now      func() time.Time
}

func NewCategoryService(repo repository.CategoryRepository, noteRepo repository.NoteRepository, notifier Notifier) *CategoryService {
	return &CategoryService{
		repo:     repo,
		noteRepo: noteRepo,
		notifier: notifierOrNop(notifier),
		now:      time.Now,
	}
}

// checkCategoryOwner accepts a nil or empty id (no category). Anything else
// must name a live category of userID.
func checkCategoryOwner(ctx context.Context, repo repository.CategoryRepository, userID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	category, err := repo.FindByID(ctx, *categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("category %s does not exist", *categoryID)
		}
		return storageErr(err, "category")
	}
	if category.UserID != userID || category.IsDeleted {
		return validationf("category %s does not exist", *categoryID)
	}
	return nil
}

func (s *CategoryService) nameTaken(ctx context.Context, userID, name string) (bool, error) {
	_, err := s.repo.FindByName(ctx, userID, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, storageErr(err, "category")
}

func (s *CategoryService) newCategory(userID string, req *domain.CreateCategoryRequest, now time.Time) *domain.Category {
	category := &domain.Category{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   strings.TrimSpace(req.Name),
		Color:  req.Color,
		Icon:   req.Icon,
	}
	category.Init(now)
	return category
}

func (s *CategoryService) Create(ctx context.Context, userID string, req *domain.CreateCategoryRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}

	taken, err := s.nameTaken(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("category %q: %w", name, ErrAlreadyExists)
	}

	category := s.newCategory(userID, req, s.now())
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, storageErr(err, "create category")
	}

	s.changed(ctx, category)
	return category, nil
}

// CreateBatch creates all categories or none. Names must be unique within
// the batch and against the user's existing categories.
func (s *CategoryService) CreateBatch(ctx context.Context, userID string, reqs []domain.CreateCategoryRequest) ([]*domain.Category, error) {
	if len(reqs) == 0 {
		return nil, validationf("categories must be a non-empty list")
	}

	seen := make(map[string]bool, len(reqs))
	var clashes []string
	for _, req := range reqs {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, validationf("name is required")
		}
		if seen[name] {
			return nil, validationf("duplicate name %q in batch", name)
		}
		seen[name] = true

		taken, err := s.nameTaken(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if taken {
			clashes = append(clashes, name)
		}
	}
	if len(clashes) > 0 {
		return nil, fmt.Errorf("categories %s: %w", strings.Join(clashes, ", "), ErrAlreadyExists)
	}

	now := s.now()
	categories := make([]*domain.Category, 0, len(reqs))
	for i := range reqs {
		categories = append(categories, s.newCategory(userID, &reqs[i], now))
	}

	if err := s.repo.CreateMany(ctx, categories); err != nil {
		return nil, storageErr(err, "create categories")
	}

	for _, c := range categories {
		s.changed(ctx, c)
	}
	return categories, nil
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]*domain.Category, error) {
	categories, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "list categories")
	}
	if categories == nil {
		categories = []*domain.Category{}
	}

	for _, c := range categories {
		if c.NoteCount, err = s.noteRepo.CountByCategory(ctx, userID, c.ID); err != nil {
			return nil, storageErr(err, "count notes")
		}
	}

	return categories, nil
}

func (s *CategoryService) GetByID(ctx context.Context, userID, id string) (*domain.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "category")
	}
	if category.UserID != userID || category.IsDeleted {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}

	if category.NoteCount, err = s.noteRepo.CountByCategory(ctx, userID, id); err != nil {
		return nil, storageErr(err, "count notes")
	}
	return category, nil
}

func (s *CategoryService) mutate(ctx context.Context, userID, id string, fn func(*domain.Category) error) (*domain.Category, error) {
	category, err := s.repo.Mutate(ctx, id, func(c *domain.Category) error {
		if c.UserID != userID || c.IsDeleted {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		if err := fn(c); err != nil {
			return err
		}
		c.ApplyMutation(s.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, storageErr(err, "category")
	}

	s.changed(ctx, category)
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, userID, id string, req *domain.UpdateCategoryRequest) (*domain.Category, error) {
	if req.Name == nil && req.Color == nil && req.Icon == nil {
		return nil, validationf("no fields to update")
	}

	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if current.IsDefault {
		return nil, validationf("the default category cannot be modified")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationf("name must not be empty")
		}
		if name != current.Name {
			taken, err := s.nameTaken(ctx, userID, name)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("category %q: %w", name, ErrAlreadyExists)
			}
		}
	}

	category, err := s.mutate(ctx, userID, id, func(c *domain.Category) error {
		req.Apply(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	category.NoteCount = current.NoteCount
	return category, nil
}

// Delete refuses the default category and categories that still hold live
// notes. The category is soft deleted so other devices see the removal.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if current.IsDefault {
		return validationf("the default category cannot be deleted")
	}
	if current.NoteCount > 0 {
		return validationf("category still contains %d notes", current.NoteCount)
	}

	_, err = s.mutate(ctx, userID, id, func(c *domain.Category) error {
		c.IsDeleted = true
		return nil
	})
	return err
}

func (s *CategoryService) changed(ctx context.Context, c *domain.Category) {
	s.notifier.EntityChanged(c.UserID, domain.DeviceIDFrom(ctx), domain.KindCategory, c.ID, c.SyncVersion, c.IsDeleted)
}
