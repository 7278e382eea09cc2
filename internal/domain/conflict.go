package domain

type Resolution string

const (
	ResolutionUseServer Resolution = "useServer"
	ResolutionUseClient Resolution = "useClient"
	ResolutionDuplicate Resolution = "duplicate"
)

// ClientVersion is the partial entity a device holds for a conflicting item.
// Note fields and category fields share one payload; only those matching the
// conflict type are read.
type ClientVersion struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	CategoryID *string   `json:"category_id,omitempty"`
	IsPinned   *bool     `json:"is_pinned,omitempty"`
	IsArchived *bool     `json:"is_archived,omitempty"`

	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
}

// NoteUpdate projects the note fields of the payload.
func (c *ClientVersion) NoteUpdate() *UpdateNoteRequest {
	return &UpdateNoteRequest{
		Title:      c.Title,
		Content:    c.Content,
		CategoryID: c.CategoryID,
		Tags:       c.Tags,
		IsPinned:   c.IsPinned,
		IsArchived: c.IsArchived,
	}
}

// CategoryUpdate projects the category fields of the payload.
func (c *ClientVersion) CategoryUpdate() *UpdateCategoryRequest {
	return &UpdateCategoryRequest{
		Name:  c.Name,
		Color: c.Color,
		Icon:  c.Icon,
	}
}

// Conflict is transient: it only lives for the duration of a resolve request.
type Conflict struct {
	Type          EntityKind     `json:"type"`
	ID            string         `json:"id"`
	Resolution    Resolution     `json:"resolution"`
	ClientVersion *ClientVersion `json:"client_version,omitempty"`
}

type ConflictResultStatus string

const (
	ConflictResultSuccess ConflictResultStatus = "success"
	ConflictResultError   ConflictResultStatus = "error"
)

type ConflictResult struct {
	Type   EntityKind           `json:"type"`
	ID     string               `json:"id"`
	Status ConflictResultStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
	NewID  string               `json:"new_id,omitempty"`
}

type ResolveConflictsRequest struct {
	Conflicts []Conflict `json:"conflicts" validate:"required,min=1"`
}
