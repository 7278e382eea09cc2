package domain

import "time"

type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	SyncTypeManual      SyncType = "manual"
	SyncTypeAuto        SyncType = "auto"
)

func (t SyncType) Valid() bool {
	switch t {
	case SyncTypeFull, SyncTypeIncremental, SyncTypeManual, SyncTypeAuto:
		return true
	}
	return false
}

type SyncRecordStatus string

const (
	SyncRecordPending    SyncRecordStatus = "pending"
	SyncRecordInProgress SyncRecordStatus = "in_progress"
	SyncRecordCompleted  SyncRecordStatus = "completed"
	SyncRecordFailed     SyncRecordStatus = "failed"
)

func (s SyncRecordStatus) Valid() bool {
	switch s {
	case SyncRecordPending, SyncRecordInProgress, SyncRecordCompleted, SyncRecordFailed:
		return true
	}
	return false
}

func (s SyncRecordStatus) Terminal() bool {
	return s == SyncRecordCompleted || s == SyncRecordFailed
}

type SyncDirection string

const (
	DirectionUpload        SyncDirection = "upload"
	DirectionDownload      SyncDirection = "download"
	DirectionBidirectional SyncDirection = "bidirectional"
)

func (d SyncDirection) Valid() bool {
	switch d {
	case DirectionUpload, DirectionDownload, DirectionBidirectional:
		return true
	}
	return false
}

// DeviceInfo is descriptive only; nothing in the sync engine branches on it.
type DeviceInfo struct {
	DeviceName    string `json:"device_name,omitempty" validate:"omitempty,max=100"`
	DeviceType    string `json:"device_type,omitempty" validate:"omitempty,oneof=mobile tablet desktop web"`
	ClientVersion string `json:"client_version,omitempty" validate:"omitempty,max=50"`
}

type SyncDetails struct {
	TotalItems      int `json:"total_items"`
	SuccessfulItems int `json:"successful_items"`
	FailedItems     int `json:"failed_items"`
	ConflictItems   int `json:"conflict_items"`
}

type SyncRecord struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	SyncType        SyncType         `json:"sync_type"`
	Status          SyncRecordStatus `json:"status"`
	Direction       SyncDirection    `json:"direction"`
	DeviceInfo      DeviceInfo       `json:"device_info"`
	SyncDetails     SyncDetails      `json:"sync_details"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	Duration        int64            `json:"duration"` // milliseconds
	ErrorMessage    string           `json:"error_message,omitempty"`
	NextSyncVersion *int64           `json:"next_sync_version,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SetStatus assigns a status. The first arrival into a terminal status fixes
// EndTime; later calls never move it.
func (r *SyncRecord) SetStatus(status SyncRecordStatus, now time.Time) {
	r.Status = status
	if status.Terminal() && r.EndTime == nil {
		end := now
		r.EndTime = &end
	}
	r.Normalize()
}

// Normalize recomputes Duration from StartTime and EndTime.
func (r *SyncRecord) Normalize() {
	if r.EndTime == nil || r.StartTime.IsZero() {
		r.Duration = 0
		return
	}
	r.Duration = r.EndTime.Sub(r.StartTime).Milliseconds()
}

type CreateSyncRecordRequest struct {
	SyncType   SyncType      `json:"sync_type" validate:"required,oneof=full incremental manual auto"`
	Direction  SyncDirection `json:"direction" validate:"required,oneof=upload download bidirectional"`
	DeviceInfo *DeviceInfo   `json:"device_info"`
}

// SyncDetailsPatch carries authoritative counter values; nil means keep.
type SyncDetailsPatch struct {
	TotalItems      *int `json:"total_items" validate:"omitempty,min=0"`
	SuccessfulItems *int `json:"successful_items" validate:"omitempty,min=0"`
	FailedItems     *int `json:"failed_items" validate:"omitempty,min=0"`
	ConflictItems   *int `json:"conflict_items" validate:"omitempty,min=0"`
}

func (p *SyncDetailsPatch) MergeInto(d *SyncDetails) {
	if p.TotalItems != nil {
		d.TotalItems = *p.TotalItems
	}
	if p.SuccessfulItems != nil {
		d.SuccessfulItems = *p.SuccessfulItems
	}
	if p.FailedItems != nil {
		d.FailedItems = *p.FailedItems
	}
	if p.ConflictItems != nil {
		d.ConflictItems = *p.ConflictItems
	}
}

func (p *SyncDetailsPatch) hasNegative() bool {
	for _, v := range []*int{p.TotalItems, p.SuccessfulItems, p.FailedItems, p.ConflictItems} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}

type UpdateSyncRecordRequest struct {
	Status          *SyncRecordStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed failed"`
	SyncDetails     *SyncDetailsPatch `json:"sync_details"`
	ErrorMessage    *string           `json:"error_message" validate:"omitempty,max=1000"`
	NextSyncVersion *int64            `json:"next_sync_version" validate:"omitempty,min=0"`
}

// HasNegativeCounters reports whether any supplied counter is below zero.
func (r *UpdateSyncRecordRequest) HasNegativeCounters() bool {
	return r.SyncDetails != nil && r.SyncDetails.hasNegative()
}

type SyncRecordFilter struct {
	Status SyncRecordStatus
	Page   int
	Limit  int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type SyncRecordList struct {
	Records    []*SyncRecord `json:"sync_records"`
	Pagination Pagination    `json:"pagination"`
}
