package service

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageFile is one uploaded image as received from a multipart form.
type ImageFile struct {
	Name string
	Size int64
	Body io.ReadSeeker
}

// ImageStore validates uploaded images by content and writes them to the
// configured file storage under the owner's prefix.
type ImageStore struct {
	files   storage.FileStorage
	maxSize int64
	now     func() time.Time
}

func NewImageStore(files storage.FileStorage, maxSize int64) *ImageStore {
	return &ImageStore{files: files, maxSize: maxSize, now: time.Now}
}

func (s *ImageStore) Save(ctx context.Context, userID string, f ImageFile) (*domain.NoteImage, error) {
	if s.maxSize > 0 && f.Size > s.maxSize {
		return nil, validationf("%s exceeds the %d byte limit", f.Name, s.maxSize)
	}

	mtype, err := mimetype.DetectReader(f.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to sniff %s: %w", f.Name, err)
	}
	ext, ok := imageExtensions[mtype.String()]
	if !ok {
		return nil, validationf("%s is not a supported image (%s)", f.Name, mtype.String())
	}

	img := &domain.NoteImage{
		Filename:   uuid.New().String() + ext,
		Size:       f.Size,
		UploadedAt: s.now(),
	}

	if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", f.Name, err)
	}
	// webp has no stdlib decoder; its dimensions stay zero.
	if cfg, _, err := image.DecodeConfig(f.Body); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", f.Name, err)
	}

	key, err := storage.UserKey(userID, img.Filename)
	if err != nil {
		return nil, validationf("%v", err)
	}
	if err := s.files.Save(ctx, key, f.Body, f.Size, mtype.String()); err != nil {
		return nil, fmt.Errorf("save image: %w: %v", ErrStorage, err)
	}

	img.URL = storage.PublicPath(userID, img.Filename)
	return img, nil
}

// Remove deletes a stored image. Missing files are not an error.
func (s *ImageStore) Remove(ctx context.Context, userID, filename string) error {
	key, err := storage.UserKey(userID, filename)
	if err != nil {
		return err
	}
	return s.files.Delete(ctx, key)
}
