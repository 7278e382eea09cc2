package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultRecordsPage  = 1
	defaultRecordsLimit = 20
)

type SyncRecordService struct {
	recordRepo repository.SyncRecordRepository
	userRepo   repository.UserRepository
	reconciler *reconciler
	notifier   Notifier
	maxLimit   int
	now        func() time.Time
}

func NewSyncRecordService(
	recordRepo repository.SyncRecordRepository,
	userRepo repository.UserRepository,
	noteRepo repository.NoteRepository,
	categoryRepo repository.CategoryRepository,
	notifier Notifier,
	maxLimit int,
) *SyncRecordService {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &SyncRecordService{
		recordRepo: recordRepo,
		userRepo:   userRepo,
		reconciler: &reconciler{noteRepo: noteRepo, categoryRepo: categoryRepo},
		notifier:   notifierOrNop(notifier),
		maxLimit:   maxLimit,
		now:        time.Now,
	}
}

func (s *SyncRecordService) Create(ctx context.Context, userID string, req *domain.CreateSyncRecordRequest) (*domain.SyncRecord, error) {
	if !req.SyncType.Valid() {
		return nil, validationf("unknown sync type %q", req.SyncType)
	}
	if !req.Direction.Valid() {
		return nil, validationf("unknown direction %q", req.Direction)
	}

	now := s.now()
	record := &domain.SyncRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		SyncType:  req.SyncType,
		Status:    domain.SyncRecordPending,
		Direction: req.Direction,
		StartTime: now,
		CreatedAt: now,
	}
	if req.DeviceInfo != nil {
		record.DeviceInfo = *req.DeviceInfo
	}

	if err := s.recordRepo.Create(ctx, record); err != nil {
		return nil, storageErr(err, "create sync record")
	}

	return record, nil
}

// Update applies a status change, counter values, an error message and the
// next sync version to one record.
//
// The first move into completed or failed fixes EndTime; Duration is always
// recomputed from StartTime and EndTime. Moving into completed reconciles the
// user's pending entities and stamps the user's LastSyncTime before the
// record is written, so a failed side effect leaves the record untouched and
// the caller can retry.
func (s *SyncRecordService) Update(ctx context.Context, userID, id string, req *domain.UpdateSyncRecordRequest) (*domain.SyncRecord, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, validationf("unknown status %q", *req.Status)
	}
	if req.HasNegativeCounters() {
		return nil, validationf("sync counters must not be negative")
	}
	if req.NextSyncVersion != nil && *req.NextSyncVersion < 0 {
		return nil, validationf("next sync version must not be negative")
	}

	var completed bool
	record, err := s.recordRepo.Mutate(ctx, id, func(rec *domain.SyncRecord) error {
		completed = false
		if rec.UserID != userID {
			return fmt.Errorf("sync record %s: %w", id, ErrNotFound)
		}

		now := s.now()
		if req.Status != nil {
			next := *req.Status
			if rec.Status.Terminal() && next != rec.Status {
				return validationf("sync record is already %s", rec.Status)
			}
			completed = next == domain.SyncRecordCompleted && rec.Status != domain.SyncRecordCompleted
			rec.SetStatus(next, now)
		}
		rec.Normalize()

		if completed {
			if err := s.reconciler.reconcile(ctx, userID); err != nil {
				return err
			}
			if err := s.touchLastSync(ctx, userID, now); err != nil {
				return err
			}
		}

		if req.SyncDetails != nil {
			req.SyncDetails.MergeInto(&rec.SyncDetails)
		}
		if req.ErrorMessage != nil {
			rec.ErrorMessage = *req.ErrorMessage
		}
		if req.NextSyncVersion != nil {
			v := *req.NextSyncVersion
			rec.NextSyncVersion = &v
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
			return nil, err
		}
		return nil, storageErr(err, "sync record")
	}

	if completed {
		log.Printf("[Sync] Session %s completed for user %s in %dms", record.ID, userID, record.Duration)
		s.notifier.SyncCompleted(userID, domain.DeviceIDFrom(ctx), record)
	}

	return record, nil
}

func (s *SyncRecordService) touchLastSync(ctx context.Context, userID string, now time.Time) error {
	_, err := s.userRepo.Mutate(ctx, userID, func(u *domain.User) error {
		t := now
		u.LastSyncTime = &t
		return nil
	})
	if err != nil {
		return fmt.Errorf("update last sync time: %w: %v", ErrStorage, err)
	}
	return nil
}

func (s *SyncRecordService) Get(ctx context.Context, userID, id string) (*domain.SyncRecord, error) {
	record, err := s.recordRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "sync record")
	}
	if record.UserID != userID {
		return nil, fmt.Errorf("sync record %s: %w", id, ErrNotFound)
	}
	return record, nil
}

func (s *SyncRecordService) List(ctx context.Context, userID string, filter domain.SyncRecordFilter) (*domain.SyncRecordList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationf("unknown status %q", filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = defaultRecordsPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultRecordsLimit
	}
	if filter.Limit > s.maxLimit {
		filter.Limit = s.maxLimit
	}

	records, total, err := s.recordRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, storageErr(err, "sync records")
	}
	if records == nil {
		records = []*domain.SyncRecord{}
	}

	return &domain.SyncRecordList{
		Records:    records,
		Pagination: domain.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}
