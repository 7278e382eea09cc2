package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusFailed  SyncStatus = "failed"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusPending, SyncStatusFailed:
		return true
	}
	return false
}

type EntityKind string

const (
	KindNote     EntityKind = "note"
	KindCategory EntityKind = "category"
)

func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindNote, KindCategory:
		return EntityKind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Versioned is the sync bookkeeping shared by notes and categories.
//
// SyncVersion starts at 1 on creation and grows by exactly one on every
// content write. It is never lowered, including during conflict resolution.
type Versioned struct {
	SyncStatus  SyncStatus `json:"sync_status"`
	SyncVersion int64      `json:"sync_version"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Init stamps a freshly created entity as its first version.
func (v *Versioned) Init(now time.Time) {
	v.SyncStatus = SyncStatusPending
	v.SyncVersion = 1
	v.UpdatedAt = now
}

// ApplyMutation must be called by every write path that changes entity
// content, in the same write that persists the change.
func (v *Versioned) ApplyMutation(now time.Time) {
	v.SyncStatus = SyncStatusPending
	v.SyncVersion++
	v.UpdatedAt = now
}

// MarkSynced flips the status only; the version is left alone.
func (v *Versioned) MarkSynced() {
	v.SyncStatus = SyncStatusSynced
}

// PendingChanges is the result of a "what changed since" query for one kind.
type PendingChanges struct {
	Kind       EntityKind  `json:"kind"`
	Notes      []*Note     `json:"notes,omitempty"`
	Categories []*Category `json:"categories,omitempty"`
	Watermark  int64       `json:"last_sync_version"`
}

// MarshalJSON always emits the list of the queried kind, empty or not, and
// never the other one.
func (p PendingChanges) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"kind":              p.Kind,
		"last_sync_version": p.Watermark,
	}
	switch p.Kind {
	case KindNote:
		notes := p.Notes
		if notes == nil {
			notes = []*Note{}
		}
		out["notes"] = notes
	case KindCategory:
		categories := p.Categories
		if categories == nil {
			categories = []*Category{}
		}
		out["categories"] = categories
	}
	return json.Marshal(out)
}

// Len returns the number of entities carried, whatever their kind.
func (p *PendingChanges) Len() int {
	return len(p.Notes) + len(p.Categories)
}

type SnapshotVersions struct {
	Categories int64 `json:"categories"`
	Notes      int64 `json:"notes"`
}

type FullSnapshot struct {
	User        *UserSummary     `json:"user"`
	Categories  []*Category      `json:"categories"`
	Notes       []*Note          `json:"notes"`
	SyncVersion SnapshotVersions `json:"sync_version"`
	SyncTime    time.Time        `json:"sync_time"`
}
