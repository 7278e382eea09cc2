package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/pkg/hash"
	"yeenote-sync-server/pkg/jwt"
)

func TestAuthService_Register(t *testing.T) {
	repo := newMockUserRepository()
	service := NewAuthService(repo, "test-secret", 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *domain.RegisterRequest
		wantErr error
		setup   func()
	}{
		{
			name: "successful registration",
			req: &domain.RegisterRequest{
				Username: "newuser",
				Email:    "New@Example.com",
				Password: "Password123!",
			},
			setup: func() {},
		},
		{
			name: "duplicate email",
			req: &domain.RegisterRequest{
				Username: "anotheruser",
				Email:    "existing@example.com",
				Password: "Password123!",
			},
			wantErr: ErrAlreadyExists,
			setup: func() {
				repo.Create(ctx, &domain.User{
					ID:       "existing-id",
					Username: "existinguser",
					Email:    "existing@example.com",
				})
			},
		},
		{
			name: "duplicate username",
			req: &domain.RegisterRequest{
				Username: "duplicateuser",
				Email:    "unique@example.com",
				Password: "Password123!",
			},
			wantErr: ErrAlreadyExists,
			setup: func() {
				repo.Create(ctx, &domain.User{
					ID:       "dup-id",
					Username: "duplicateuser",
					Email:    "other@example.com",
				})
			},
		},
		{
			name: "weak password",
			req: &domain.RegisterRequest{
				Username: "testuser",
				Email:    "test@example.com",
				Password: "weak",
			},
			wantErr: ErrValidation,
			setup:   func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.users = make(map[string]*domain.User)
			tt.setup()

			user, err := service.Register(ctx, tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() unexpected error = %v", err)
			}
			if user.Password != "" {
				t.Error("Register() returned the password hash")
			}

			stored, err := repo.FindByEmail(ctx, "new@example.com")
			if err != nil {
				t.Fatal("Register() did not store the lowercased email")
			}
			if err := hash.Compare(stored.Password, tt.req.Password); err != nil {
				t.Error("Register() stored a hash that does not match the password")
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	repo := newMockUserRepository()
	service := NewAuthService(repo, "test-secret-key", 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()

	password := "UserPassword123!"
	hashedPassword, _ := hash.Hash(password)

	repo.Create(ctx, &domain.User{
		ID:       "test-user-id",
		Username: "testuser",
		Email:    "test@example.com",
		Password: hashedPassword,
	})

	tests := []struct {
		name    string
		req     *domain.LoginRequest
		wantErr bool
	}{
		{
			name: "successful login",
			req:  &domain.LoginRequest{Email: "test@example.com", Password: password},
		},
		{
			name: "email is case insensitive",
			req:  &domain.LoginRequest{Email: "TEST@example.com", Password: password},
		},
		{
			name:    "wrong password",
			req:     &domain.LoginRequest{Email: "test@example.com", Password: "WrongPassword"},
			wantErr: true,
		},
		{
			name:    "non-existent email",
			req:     &domain.LoginRequest{Email: "nonexistent@example.com", Password: password},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.Login(ctx, tt.req)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLogin) {
					t.Errorf("Login() error = %v, want ErrInvalidLogin", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Login() unexpected error = %v", err)
			}
			if resp.AccessToken == "" || resp.RefreshToken == "" {
				t.Error("Login() returned an empty token")
			}
			if resp.User.Password != "" {
				t.Error("Login() returned user with password")
			}
			if resp.ExpiresIn != int64(15*time.Minute.Seconds()) {
				t.Errorf("Login() expiresIn = %v, want %v", resp.ExpiresIn, 15*60)
			}
			if _, err := jwt.ValidateAccessToken(resp.AccessToken, "test-secret-key"); err != nil {
				t.Errorf("Login() access token does not validate: %v", err)
			}
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	repo := newMockUserRepository()
	secret := "refresh-test-secret-key"
	service := NewAuthService(repo, secret, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()

	repo.Create(ctx, &domain.User{
		ID:       "refresh-user-id",
		Username: "refreshuser",
		Email:    "refresh@example.com",
		Password: "hashed",
	})

	validToken, _ := jwt.GenerateRefreshToken("refresh-user-id", 7*24*time.Hour, secret)
	expiredToken, _ := jwt.GenerateRefreshToken("refresh-user-id", -1*time.Hour, secret)
	accessToken, _ := jwt.GenerateToken("refresh-user-id", time.Hour, secret)
	orphanToken, _ := jwt.GenerateRefreshToken("deleted-user", time.Hour, secret)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid refresh token", token: validToken},
		{name: "expired refresh token", token: expiredToken, wantErr: true},
		{name: "access token used as refresh", token: accessToken, wantErr: true},
		{name: "user no longer exists", token: orphanToken, wantErr: true},
		{name: "invalid refresh token", token: "invalid.token.here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.RefreshToken(ctx, &domain.RefreshTokenRequest{RefreshToken: tt.token})

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRefresh) {
					t.Errorf("RefreshToken() error = %v, want ErrInvalidRefresh", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("RefreshToken() unexpected error = %v", err)
			}
			if resp.AccessToken == "" {
				t.Error("RefreshToken() returned empty access token")
			}
		})
	}
}
