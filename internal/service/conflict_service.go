package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultDuplicateSuffix = " (copy)"

var errNotOwned = errors.New("entity belongs to another user")

type ConflictService struct {
	noteRepo        repository.NoteRepository
	categoryRepo    repository.CategoryRepository
	notifier        Notifier
	workers         int
	duplicateSuffix string
	debug           bool
	now             func() time.Time
}

type ConflictOptions struct {
	Workers         int
	DuplicateSuffix string
	Debug           bool
}

func NewConflictService(
	noteRepo repository.NoteRepository,
	categoryRepo repository.CategoryRepository,
	notifier Notifier,
	opts ConflictOptions,
) *ConflictService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DuplicateSuffix == "" {
		opts.DuplicateSuffix = DefaultDuplicateSuffix
	}
	return &ConflictService{
		noteRepo:        noteRepo,
		categoryRepo:    categoryRepo,
		notifier:        notifierOrNop(notifier),
		workers:         opts.Workers,
		duplicateSuffix: opts.DuplicateSuffix,
		debug:           opts.Debug,
		now:             time.Now,
	}
}

// ResolveBatch applies each conflict's resolution independently. Result i
// always describes conflicts[i]; a failing item never stops the others.
// Only an empty batch fails the call as a whole.
func (s *ConflictService) ResolveBatch(ctx context.Context, userID string, conflicts []domain.Conflict) ([]domain.ConflictResult, error) {
	if len(conflicts) == 0 {
		return nil, validationf("conflicts must be a non-empty list")
	}

	results := make([]domain.ConflictResult, len(conflicts))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range conflicts {
		i := i
		g.Go(func() error {
			results[i] = s.resolveOne(ctx, userID, conflicts[i])
			return nil
		})
	}
	g.Wait()

	resolved := 0
	for _, r := range results {
		if r.Status == domain.ConflictResultSuccess {
			resolved++
		}
	}
	log.Printf("[Conflict] Resolved %d/%d conflicts for user %s", resolved, len(results), userID)

	if resolved > 0 {
		s.notifier.ConflictsResolved(userID, domain.DeviceIDFrom(ctx), results)
	}

	return results, nil
}

func (s *ConflictService) resolveOne(ctx context.Context, userID string, c domain.Conflict) domain.ConflictResult {
	result := domain.ConflictResult{Type: c.Type, ID: c.ID}

	newID, err := s.apply(ctx, userID, c)
	if err != nil {
		var itemErr *ConflictItemError
		if !errors.As(err, &itemErr) {
			itemErr = &ConflictItemError{Type: c.Type, ID: c.ID, Reason: err.Error()}
		}
		if s.debug {
			log.Printf("[Conflict] %v", itemErr)
		}
		result.Status = domain.ConflictResultError
		result.Error = itemErr.Reason
		return result
	}

	if s.debug {
		log.Printf("[Conflict] %s %s resolved with %s", c.Type, c.ID, c.Resolution)
	}
	result.Status = domain.ConflictResultSuccess
	result.NewID = newID
	return result
}

func (s *ConflictService) apply(ctx context.Context, userID string, c domain.Conflict) (string, error) {
	fail := func(reason string) error {
		return &ConflictItemError{Type: c.Type, ID: c.ID, Reason: reason}
	}

	if _, err := domain.ParseEntityKind(string(c.Type)); err != nil {
		return "", fail("unknown entity type")
	}
	if c.ID == "" {
		return "", fail("missing id")
	}

	switch c.Resolution {
	case domain.ResolutionUseServer:
		return "", s.itemErr(c, s.useServer(ctx, userID, c))

	case domain.ResolutionUseClient:
		if c.ClientVersion == nil {
			return "", fail("client_version is required for useClient")
		}
		return "", s.itemErr(c, s.useClient(ctx, userID, c))

	case domain.ResolutionDuplicate:
		if c.Type != domain.KindNote {
			return "", fail("duplicate is only supported for notes")
		}
		if c.ClientVersion == nil {
			return "", fail("client_version is required for duplicate")
		}
		newID, err := s.duplicate(ctx, userID, c)
		return newID, s.itemErr(c, err)
	}

	return "", fail("unknown resolution")
}

// itemErr turns repository and ownership failures into per-item errors.
func (s *ConflictService) itemErr(c domain.Conflict, err error) error {
	if err == nil {
		return nil
	}
	var itemErr *ConflictItemError
	if errors.As(err, &itemErr) {
		return err
	}

	reason := "storage error"
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, errNotOwned):
		reason = "not found"
	case errors.Is(err, ErrValidation):
		reason = err.Error()
	}
	return &ConflictItemError{Type: c.Type, ID: c.ID, Reason: reason}
}

// useServer keeps the stored content and only acknowledges it as synced.
func (s *ConflictService) useServer(ctx context.Context, userID string, c domain.Conflict) error {
	if c.Type == domain.KindNote {
		_, err := s.noteRepo.Mutate(ctx, c.ID, func(n *domain.Note) error {
			if n.UserID != userID {
				return errNotOwned
			}
			n.MarkSynced()
			return nil
		})
		return err
	}

	_, err := s.categoryRepo.Mutate(ctx, c.ID, func(cat *domain.Category) error {
		if cat.UserID != userID {
			return errNotOwned
		}
		cat.MarkSynced()
		return nil
	})
	return err
}

// useClient overwrites the stored entity with the device's fields. The write
// counts as a new version so other devices pull the resolved content.
func (s *ConflictService) useClient(ctx context.Context, userID string, c domain.Conflict) error {
	now := s.now()

	if c.Type == domain.KindNote {
		update := c.ClientVersion.NoteUpdate()
		if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
			return validationf("title must not be empty")
		}
		if err := checkCategoryOwner(ctx, s.categoryRepo, userID, update.CategoryID); err != nil {
			return err
		}
		_, err := s.noteRepo.Mutate(ctx, c.ID, func(n *domain.Note) error {
			if n.UserID != userID {
				return errNotOwned
			}
			update.Apply(n)
			n.ApplyMutation(now)
			n.MarkSynced()
			return nil
		})
		return err
	}

	update := c.ClientVersion.CategoryUpdate()
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return validationf("name must not be empty")
	}
	_, err := s.categoryRepo.Mutate(ctx, c.ID, func(cat *domain.Category) error {
		if cat.UserID != userID {
			return errNotOwned
		}
		update.Apply(cat)
		cat.ApplyMutation(now)
		cat.MarkSynced()
		return nil
	})
	return err
}

// duplicate keeps both sides: the stored note is acknowledged unchanged and
// the device's version becomes a new note. The acknowledgement goes first so
// a failed item never leaves a copy behind for a retry to duplicate again.
func (s *ConflictService) duplicate(ctx context.Context, userID string, c domain.Conflict) (string, error) {
	update := c.ClientVersion.NoteUpdate()
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return "", validationf("title must not be empty")
	}
	if err := checkCategoryOwner(ctx, s.categoryRepo, userID, update.CategoryID); err != nil {
		return "", err
	}

	original, err := s.noteRepo.Mutate(ctx, c.ID, func(n *domain.Note) error {
		if n.UserID != userID {
			return errNotOwned
		}
		n.MarkSynced()
		return nil
	})
	if err != nil {
		return "", err
	}

	copyNote := &domain.Note{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      original.Title,
		Content:    original.Content,
		CategoryID: original.CategoryID,
		Tags:       append([]string{}, original.Tags...),
		IsPinned:   original.IsPinned,
		IsArchived: original.IsArchived,
	}
	update.Apply(copyNote)
	copyNote.Title = s.duplicateTitle(copyNote.Title)
	copyNote.Init(s.now())

	if err := s.noteRepo.Create(ctx, copyNote); err != nil {
		return "", err
	}

	return copyNote.ID, nil
}

func (s *ConflictService) duplicateTitle(title string) string {
	room := domain.MaxTitleLength - len([]rune(s.duplicateSuffix))
	runes := []rune(title)
	if room > 0 && len(runes) > room {
		title = string(runes[:room])
	}
	return title + s.duplicateSuffix
}
