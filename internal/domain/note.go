package domain

import (
	"regexp"
	"strings"
	"time"
)

const (
	MaxTitleLength   = 255
	MaxExcerptLength = 200
)

type NoteImage struct {
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Note struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Excerpt    string      `json:"excerpt"`
	CategoryID *string     `json:"category_id"`
	Tags       []string    `json:"tags"`
	IsPinned   bool        `json:"is_pinned"`
	IsArchived bool        `json:"is_archived"`
	IsDeleted  bool        `json:"is_deleted"`
	Images     []NoteImage `json:"images"`

	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at"`
	Versioned
}

// Init prepares a new note as version 1.
func (n *Note) Init(now time.Time) {
	n.CreatedAt = now
	n.LastModified = now
	n.Excerpt = MakeExcerpt(n.Content)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.Images == nil {
		n.Images = []NoteImage{}
	}
	n.Versioned.Init(now)
}

// ApplyMutation advances the note's sync state after a content change.
func (n *Note) ApplyMutation(now time.Time) {
	n.LastModified = now
	n.Excerpt = MakeExcerpt(n.Content)
	n.Versioned.ApplyMutation(now)
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// MakeExcerpt strips markup and keeps the first MaxExcerptLength runes.
func MakeExcerpt(content string) string {
	plain := strings.TrimSpace(htmlTag.ReplaceAllString(content, ""))
	runes := []rune(plain)
	if len(runes) > MaxExcerptLength {
		return string(runes[:MaxExcerptLength]) + "..."
	}
	return plain
}

type CreateNoteRequest struct {
	Title      string   `json:"title" validate:"required,max=255"`
	Content    string   `json:"content" validate:"required"`
	CategoryID *string  `json:"category_id"`
	Tags       []string `json:"tags" validate:"omitempty,dive,max=50"`
	IsPinned   bool     `json:"is_pinned"`
	IsArchived bool     `json:"is_archived"`
}

type UpdateNoteRequest struct {
	Title      *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Content    *string   `json:"content" validate:"omitempty,min=1"`
	CategoryID *string   `json:"category_id"`
	Tags       *[]string `json:"tags"`
	IsPinned   *bool     `json:"is_pinned"`
	IsArchived *bool     `json:"is_archived"`
}

// Empty reports whether the request carries no field to change.
func (r *UpdateNoteRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && r.CategoryID == nil &&
		r.Tags == nil && r.IsPinned == nil && r.IsArchived == nil
}

// Apply copies the provided fields onto n. It does not touch sync state.
func (r *UpdateNoteRequest) Apply(n *Note) {
	if r.Title != nil {
		n.Title = strings.TrimSpace(*r.Title)
	}
	if r.Content != nil {
		n.Content = *r.Content
	}
	if r.CategoryID != nil {
		if *r.CategoryID == "" {
			n.CategoryID = nil
		} else {
			id := *r.CategoryID
			n.CategoryID = &id
		}
	}
	if r.Tags != nil {
		n.Tags = append([]string{}, (*r.Tags)...)
	}
	if r.IsPinned != nil {
		n.IsPinned = *r.IsPinned
	}
	if r.IsArchived != nil {
		n.IsArchived = *r.IsArchived
	}
}

type NoteFilter struct {
	CategoryID string
	Search     string
	Pinned     *bool
	Archived   *bool
	Deleted    bool
	Page       int
	Limit      int
}
