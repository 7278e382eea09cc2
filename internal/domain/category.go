package domain

import (
	"strings"
	"time"
)

const (
	DefaultCategoryColor = "#e5e7eb"
	DefaultCategoryIcon  = "folder"
	MaxCategoryName      = 50
)

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	IsDefault bool      `json:"is_default"`
	IsDeleted bool      `json:"is_deleted"`
	NoteCount int       `json:"note_count"`
	CreatedAt time.Time `json:"created_at"`
	Versioned
}

func (c *Category) Init(now time.Time) {
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	c.CreatedAt = now
	c.Versioned.Init(now)
}

type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor,len=7"`
	Icon  string `json:"icon" validate:"omitempty,max=50"`
}

type BatchCreateCategoriesRequest struct {
	Categories []CreateCategoryRequest `json:"categories" validate:"required,min=1,dive"`
}

type UpdateCategoryRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor,len=7"`
	Icon  *string `json:"icon" validate:"omitempty,min=1,max=50"`
}

func (r *UpdateCategoryRequest) Apply(c *Category) {
	if r.Name != nil {
		c.Name = strings.TrimSpace(*r.Name)
	}
	if r.Color != nil {
		c.Color = *r.Color
	}
	if r.Icon != nil {
		c.Icon = *r.Icon
	}
}
