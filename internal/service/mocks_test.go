package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/repository"
)

// The mocks store copies so callers never alias stored state, the same way
// a database round trip would behave.

func cloneNote(n *domain.Note) *domain.Note {
	c := *n
	c.Tags = append([]string{}, n.Tags...)
	c.Images = append([]domain.NoteImage{}, n.Images...)
	if n.CategoryID != nil {
		id := *n.CategoryID
		c.CategoryID = &id
	}
	return &c
}

type mockNoteRepo struct {
	mu         sync.Mutex
	notes      map[string]*domain.Note
	markErr    error
	mutateErr  error
	markCalled int
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: make(map[string]*domain.Note)}
}

func (m *mockNoteRepo) put(n *domain.Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = cloneNote(n)
}

func (m *mockNoteRepo) get(id string) *domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		return cloneNote(n)
	}
	return nil
}

func (m *mockNoteRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

func (m *mockNoteRepo) Create(ctx context.Context, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[note.ID]; ok {
		return repository.ErrRevisionConflict
	}
	m.notes[note.ID] = cloneNote(note)
	return nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	if n := m.get(id); n != nil {
		return n, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteRepo) matching(keep func(*domain.Note) bool) []*domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Note
	for _, n := range m.notes {
		if keep(n) {
			out = append(out, cloneNote(n))
		}
	}
	return out
}

func (m *mockNoteRepo) List(ctx context.Context, userID string, filter domain.NoteFilter) ([]*domain.Note, int, error) {
	search := strings.ToLower(filter.Search)
	notes := m.matching(func(n *domain.Note) bool {
		if n.UserID != userID || n.IsDeleted != filter.Deleted {
			return false
		}
		if filter.CategoryID != "" && (n.CategoryID == nil || *n.CategoryID != filter.CategoryID) {
			return false
		}
		if filter.Pinned != nil && n.IsPinned != *filter.Pinned {
			return false
		}
		if filter.Archived != nil && n.IsArchived != *filter.Archived {
			return false
		}
		if search != "" {
			hay := strings.ToLower(n.Title + " " + n.Content + " " + strings.Join(n.Tags, " "))
			return strings.Contains(hay, search)
		}
		return true
	})
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })

	total := len(notes)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []*domain.Note{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return notes[start:end], total, nil
}

func (m *mockNoteRepo) ListActive(ctx context.Context, userID string) ([]*domain.Note, error) {
	return m.matching(func(n *domain.Note) bool { return n.UserID == userID && !n.IsDeleted }), nil
}

func (m *mockNoteRepo) ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Note, error) {
	notes := m.matching(func(n *domain.Note) bool { return n.UserID == userID && n.SyncVersion > since })
	repository.SortNotesByVersion(notes)
	return notes, nil
}

func (m *mockNoteRepo) CountByCategory(ctx context.Context, userID, categoryID string) (int, error) {
	notes := m.matching(func(n *domain.Note) bool {
		return n.UserID == userID && !n.IsDeleted && n.CategoryID != nil && *n.CategoryID == categoryID
	})
	return len(notes), nil
}

func (m *mockNoteRepo) Mutate(ctx context.Context, id string, fn func(*domain.Note) error) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return nil, m.mutateErr
	}
	stored, ok := m.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	n := cloneNote(stored)
	if err := fn(n); err != nil {
		return nil, err
	}
	m.notes[id] = cloneNote(n)
	return n, nil
}

func (m *mockNoteRepo) MarkPendingSynced(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalled++
	if m.markErr != nil {
		return 0, m.markErr
	}
	count := 0
	for _, n := range m.notes {
		if n.UserID == userID && n.SyncStatus == domain.SyncStatusPending {
			n.SyncStatus = domain.SyncStatusSynced
			count++
		}
	}
	return count, nil
}

type mockCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*domain.Category
	markErr    error
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[string]*domain.Category)}
}

func (m *mockCategoryRepo) put(c *domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.categories[c.ID] = &copied
}

func (m *mockCategoryRepo) get(id string) *domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[id]; ok {
		copied := *c
		return &copied
	}
	return nil
}

func (m *mockCategoryRepo) Create(ctx context.Context, category *domain.Category) error {
	m.put(category)
	return nil
}

func (m *mockCategoryRepo) CreateMany(ctx context.Context, categories []*domain.Category) error {
	for _, c := range categories {
		m.put(c)
	}
	return nil
}

func (m *mockCategoryRepo) FindByID(ctx context.Context, id string) (*domain.Category, error) {
	if c := m.get(id); c != nil {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockCategoryRepo) matching(keep func(*domain.Category) bool) []*domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Category
	for _, c := range m.categories {
		if keep(c) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out
}

func (m *mockCategoryRepo) FindByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	found := m.matching(func(c *domain.Category) bool {
		return c.UserID == userID && c.Name == name && !c.IsDeleted
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (m *mockCategoryRepo) ListActive(ctx context.Context, userID string) ([]*domain.Category, error) {
	categories := m.matching(func(c *domain.Category) bool { return c.UserID == userID && !c.IsDeleted })
	sort.Slice(categories, func(i, j int) bool { return categories[i].CreatedAt.Before(categories[j].CreatedAt) })
	return categories, nil
}

func (m *mockCategoryRepo) ListSinceVersion(ctx context.Context, userID string, since int64) ([]*domain.Category, error) {
	categories := m.matching(func(c *domain.Category) bool { return c.UserID == userID && c.SyncVersion > since })
	repository.SortCategoriesByVersion(categories)
	return categories, nil
}

func (m *mockCategoryRepo) Mutate(ctx context.Context, id string, fn func(*domain.Category) error) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *stored
	if err := fn(&c); err != nil {
		return nil, err
	}
	saved := c
	m.categories[id] = &saved
	return &c, nil
}

func (m *mockCategoryRepo) MarkPendingSynced(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return 0, m.markErr
	}
	count := 0
	for _, c := range m.categories {
		if c.UserID == userID && c.SyncStatus == domain.SyncStatusPending {
			c.SyncStatus = domain.SyncStatusSynced
			count++
		}
	}
	return count, nil
}

type mockUserRepository struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	mutateErr error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *mockUserRepository) Mutate(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return nil, m.mutateErr
	}
	stored, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *stored
	if err := fn(&u); err != nil {
		return nil, err
	}
	saved := u
	m.users[id] = &saved
	return &u, nil
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

type mockSyncRecordRepo struct {
	mu      sync.Mutex
	records map[string]*domain.SyncRecord
}

func newMockSyncRecordRepo() *mockSyncRecordRepo {
	return &mockSyncRecordRepo{records: make(map[string]*domain.SyncRecord)}
}

func (m *mockSyncRecordRepo) Create(ctx context.Context, record *domain.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *mockSyncRecordRepo) FindByID(ctx context.Context, id string) (*domain.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockSyncRecordRepo) Mutate(ctx context.Context, id string, fn func(*domain.SyncRecord) error) (*domain.SyncRecord, error) {
	m.mu.Lock()
	stored, ok := m.records[id]
	var r domain.SyncRecord
	if ok {
		r = *stored
	}
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	// fn may call other repositories, so it runs outside the lock.
	if err := fn(&r); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	saved := r
	m.records[id] = &saved
	return &r, nil
}

func (m *mockSyncRecordRepo) List(ctx context.Context, userID string, filter domain.SyncRecordFilter) ([]*domain.SyncRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SyncRecord
	for _, r := range m.records {
		if r.UserID == userID && (filter.Status == "" || r.Status == filter.Status) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []*domain.SyncRecord{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

type notification struct {
	kind    string
	userID  string
	origin  string
	id      string
	version int64
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (r *recordingNotifier) add(n notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) EntityChanged(userID, originDevice string, kind domain.EntityKind, id string, version int64, deleted bool) {
	r.add(notification{kind: "entity_changed:" + string(kind), userID: userID, origin: originDevice, id: id, version: version})
}

func (r *recordingNotifier) SyncCompleted(userID, originDevice string, record *domain.SyncRecord) {
	r.add(notification{kind: "sync_completed", userID: userID, origin: originDevice, id: record.ID})
}

func (r *recordingNotifier) ConflictsResolved(userID, originDevice string, results []domain.ConflictResult) {
	r.add(notification{kind: "conflicts_resolved", userID: userID, origin: originDevice})
}

func (r *recordingNotifier) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification{}, r.events...)
}

var errDatabaseDown = errors.New("couchdb: connection refused")
