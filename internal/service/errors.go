package service

import (
	"errors"
	"fmt"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrAlreadyExists  = errors.New("already exists")
	ErrStorage        = errors.New("storage unavailable")
	ErrInvalidLogin   = errors.New("invalid credentials")
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// ConflictItemError describes why one entry of a resolve batch failed. It
// never aborts the batch.
type ConflictItemError struct {
	Type   domain.EntityKind
	ID     string
	Reason string
}

func (e *ConflictItemError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Type, e.ID, e.Reason)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr classifies a repository failure: missing documents become
// ErrNotFound, everything else ErrStorage.
func storageErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", what, ErrStorage, err)
}
