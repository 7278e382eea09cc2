package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	images   *ImageStore
}

func NewUserService(userRepo repository.UserRepository, images *ImageStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		images:   images,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "user")
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) mutate(ctx context.Context, userID string, fn func(*domain.User) error) (*domain.User, error) {
	user, err := s.userRepo.Mutate(ctx, userID, func(u *domain.User) error {
		if err := fn(u); err != nil {
			return err
		}
		u.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, storageErr(err, "user")
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		current, err := s.userRepo.FindByUsername(ctx, username)
		switch {
		case err == nil && current.ID != userID:
			return nil, fmt.Errorf("username: %w", ErrAlreadyExists)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, storageErr(err, "check username")
		}
	}

	return s.mutate(ctx, userID, func(u *domain.User) error {
		if req.Username != nil {
			u.Username = strings.TrimSpace(*req.Username)
		}
		if req.PhoneNumber != nil {
			u.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
		}
		if req.Bio != nil {
			u.Bio = strings.TrimSpace(*req.Bio)
		}
		return nil
	})
}

func (s *UserService) UpdateSyncSettings(ctx context.Context, userID string, enabled bool) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		u.SyncEnabled = enabled
		return nil
	})
}

// UpdateAvatar stores the new image and drops the previous one.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, f ImageFile) (*domain.User, error) {
	img, err := s.images.Save(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	var previous string
	user, err := s.mutate(ctx, userID, func(u *domain.User) error {
		previous = u.Avatar
		u.Avatar = img.URL
		return nil
	})
	if err != nil {
		s.images.Remove(ctx, userID, img.Filename)
		return nil, err
	}

	if previous != "" {
		if err := s.images.Remove(ctx, userID, path.Base(previous)); err != nil {
			log.Printf("[Users] Failed to remove old avatar of %s: %v", userID, err)
		}
	}

	return user, nil
}
