// Package storage keeps uploaded note images and avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

// FileStorage stores opaque objects under slash separated keys.
type FileStorage interface {
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns a location a client can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}

// UserKey builds the key for a file owned by userID.
func UserKey(userID, filename string) (string, error) {
	if err := checkSegment(userID); err != nil {
		return "", err
	}
	if err := checkSegment(filename); err != nil {
		return "", err
	}
	return path.Join("users", userID, filename), nil
}

// PublicPath is the stable server path a stored user file is served at.
func PublicPath(userID, filename string) string {
	return "/uploads/" + userID + "/" + filename
}

func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return nil
}
