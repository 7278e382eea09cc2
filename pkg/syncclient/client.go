// Package syncclient is a small HTTP client for the sync endpoints, meant for
// device applications and integration tooling.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// APIError is any other error status returned by the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Credentials identify the caller. They are passed to every call so one
// Client can serve several accounts or devices at once.
type Credentials struct {
	Token    string
	DeviceID string
}

// Client talks to one server. It holds no per-user state.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the API rooted at baseURL, e.g.
// "https://notes.example.com/api/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types (mirror the server's JSON, independently defined) ---

type Versioned struct {
	SyncStatus  string    `json:"sync_status"`
	SyncVersion int64     `json:"sync_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Note struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Excerpt      string    `json:"excerpt"`
	CategoryID   *string   `json:"category_id"`
	Tags         []string  `json:"tags"`
	IsPinned     bool      `json:"is_pinned"`
	IsArchived   bool      `json:"is_archived"`
	IsDeleted    bool      `json:"is_deleted"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at"`
	Versioned
}

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	IsDefault bool      `json:"is_default"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	Versioned
}

// PendingChanges carries either Notes or Categories, depending on Kind.
type PendingChanges struct {
	Kind            string      `json:"kind"`
	Notes           []*Note     `json:"notes"`
	Categories      []*Category `json:"categories"`
	LastSyncVersion int64       `json:"last_sync_version"`
}

type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	SyncEnabled bool   `json:"sync_enabled"`
}

type SnapshotVersions struct {
	Categories int64 `json:"categories"`
	Notes      int64 `json:"notes"`
}

type FullSnapshot struct {
	User        UserSummary      `json:"user"`
	Categories  []*Category      `json:"categories"`
	Notes       []*Note          `json:"notes"`
	SyncVersion SnapshotVersions `json:"sync_version"`
	SyncTime    time.Time        `json:"sync_time"`
}

type DeviceInfo struct {
	DeviceName    string `json:"device_name,omitempty"`
	DeviceType    string `json:"device_type,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`
}

type SyncDetails struct {
	TotalItems      int `json:"total_items"`
	SuccessfulItems int `json:"successful_items"`
	FailedItems     int `json:"failed_items"`
	ConflictItems   int `json:"conflict_items"`
}

type SyncRecord struct {
	ID              string      `json:"id"`
	SyncType        string      `json:"sync_type"`
	Status          string      `json:"status"`
	Direction       string      `json:"direction"`
	DeviceInfo      DeviceInfo  `json:"device_info"`
	SyncDetails     SyncDetails `json:"sync_details"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	Duration        int64       `json:"duration"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	NextSyncVersion *int64      `json:"next_sync_version,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type CreateSyncRecordRequest struct {
	SyncType   string      `json:"sync_type"`
	Direction  string      `json:"direction"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// SyncDetailsPatch sends only the counters that are set.
type SyncDetailsPatch struct {
	TotalItems      *int `json:"total_items,omitempty"`
	SuccessfulItems *int `json:"successful_items,omitempty"`
	FailedItems     *int `json:"failed_items,omitempty"`
	ConflictItems   *int `json:"conflict_items,omitempty"`
}

type UpdateSyncRecordRequest struct {
	Status          *string           `json:"status,omitempty"`
	SyncDetails     *SyncDetailsPatch `json:"sync_details,omitempty"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	NextSyncVersion *int64            `json:"next_sync_version,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type SyncRecordPage struct {
	Records    []*SyncRecord
	Pagination Pagination
}

// ClientVersion is the device's copy of a conflicting entity.
type ClientVersion struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	CategoryID *string   `json:"category_id,omitempty"`
	IsPinned   *bool     `json:"is_pinned,omitempty"`
	IsArchived *bool     `json:"is_archived,omitempty"`
	Name       *string   `json:"name,omitempty"`
	Color      *string   `json:"color,omitempty"`
	Icon       *string   `json:"icon,omitempty"`
}

type Conflict struct {
	Type          string         `json:"type"`
	ID            string         `json:"id"`
	Resolution    string         `json:"resolution"`
	ClientVersion *ClientVersion `json:"client_version,omitempty"`
}

type ConflictResult struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	NewID  string `json:"new_id,omitempty"`
}

// --- Sync methods ---

// PendingChanges lists entities of kind ("note" or "category") whose
// version is above since.
func (c *Client) PendingChanges(ctx context.Context, creds Credentials, kind string, since int64) (*PendingChanges, error) {
	q := url.Values{}
	q.Set("kind", kind)
	q.Set("since", strconv.FormatInt(since, 10))

	var resp PendingChanges
	if err := c.do(ctx, creds, "GET", "/sync/pending?"+q.Encode(), nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FullSnapshot fetches every live note and category of the account.
func (c *Client) FullSnapshot(ctx context.Context, creds Credentials) (*FullSnapshot, error) {
	var resp FullSnapshot
	if err := c.do(ctx, creds, "GET", "/sync/full", nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateSyncRecord(ctx context.Context, creds Credentials, req *CreateSyncRecordRequest) (*SyncRecord, error) {
	var resp SyncRecord
	if err := c.do(ctx, creds, "POST", "/sync/records", req, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateSyncRecord(ctx context.Context, creds Credentials, id string, req *UpdateSyncRecordRequest) (*SyncRecord, error) {
	var resp SyncRecord
	if err := c.do(ctx, creds, "PATCH", "/sync/records/"+url.PathEscape(id), req, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSyncRecords pages through the account's sync history. An empty status
// lists every record.
func (c *Client) ListSyncRecords(ctx context.Context, creds Credentials, status string, page, limit int) (*SyncRecordPage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/sync/records"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp SyncRecordPage
	if err := c.do(ctx, creds, "GET", path, nil, &resp.Records, &resp.Pagination); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveConflicts submits a batch; results come back in input order.
func (c *Client) ResolveConflicts(ctx context.Context, creds Credentials, conflicts []Conflict) ([]ConflictResult, error) {
	body := map[string]interface{}{"conflicts": conflicts}
	var resp struct {
		Results []ConflictResult `json:"results"`
	}
	if err := c.do(ctx, creds, "POST", "/sync/resolve-conflicts", body, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// --- HTTP helpers ---

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Pagination json.RawMessage `json:"pagination"`
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body, result, pagination any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.DeviceID != "" {
		req.Header.Set("X-Device-ID", creds.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", ErrValidation, msg)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		default:
			return &APIError{Status: resp.StatusCode, Message: msg}
		}
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	if pagination != nil && len(env.Pagination) > 0 {
		if err := json.Unmarshal(env.Pagination, pagination); err != nil {
			return fmt.Errorf("decode pagination: %w", err)
		}
	}
	return nil
}
