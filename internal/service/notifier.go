package service

import "yeenote-sync-server/internal/domain"

// Notifier pushes change hints to a user's connected devices. originDevice
// is excluded from the fan-out. Implementations must not block.
type Notifier interface {
	EntityChanged(userID, originDevice string, kind domain.EntityKind, id string, version int64, deleted bool)
	SyncCompleted(userID, originDevice string, record *domain.SyncRecord)
	ConflictsResolved(userID, originDevice string, results []domain.ConflictResult)
}

type nopNotifier struct{}

func (nopNotifier) EntityChanged(string, string, domain.EntityKind, string, int64, bool) {}
func (nopNotifier) SyncCompleted(string, string, *domain.SyncRecord) {}
func (nopNotifier) ConflictsResolved(string, string, []domain.ConflictResult) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
