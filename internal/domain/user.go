package domain

import "time"

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username" validate:"required,min=3,max=20,alphanum"`
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password,omitempty"` // Save to DB but omit from responses when empty
	PhoneNumber  string     `json:"phone_number,omitempty"`
	Avatar       string     `json:"avatar"`
	Bio          string     `json:"bio,omitempty"`
	SyncEnabled  bool       `json:"sync_enabled"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	SyncEnabled bool   `json:"sync_enabled"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		SyncEnabled: u.SyncEnabled,
	}
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=20,alphanum"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type UpdateProfileRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=20,alphanum"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,e164"`
	Bio         *string `json:"bio" validate:"omitempty,max=200"`
}

type SyncSettingsRequest struct {
	SyncEnabled *bool `json:"sync_enabled" validate:"required"`
}
