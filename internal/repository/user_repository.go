package repository

import (
	"context"
	"errors"
	"fmt"

	"yeenote-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Mutate(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.User
}

type userRepository struct {
	client     *kivik.Client
	dbName     string
	maxRetries int
}

func NewUserRepository(client *kivik.Client, dbName string, maxRetries int) UserRepository {
	return &userRepository{
		client:     client,
		dbName:     dbName,
		maxRetries: retries(maxRetries),
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	doc := userDoc{DocType: docTypeUser, User: *user}
	if _, err := db.Put(ctx, docID(docTypeUser, user.ID), doc); err != nil {
		return classify(err, "failed to create user")
	}

	return nil
}

func (r *userRepository) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeUser,
			field:      value,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query user by %s: %w", field, err)
		}
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}

	var doc userDoc
	if err := rows.ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &doc.User, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var doc userDoc
	if err := db.Get(ctx, docID(docTypeUser, id)).ScanDoc(&doc); err != nil {
		return nil, classify(err, "failed to find user by ID")
	}

	return &doc.User, nil
}

func (r *userRepository) Mutate(ctx context.Context, id string, fn func(*domain.User) error) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		var doc userDoc
		if err := db.Get(ctx, docID(docTypeUser, id)).ScanDoc(&doc); err != nil {
			return nil, classify(err, "failed to find user by ID")
		}

		if err := fn(&doc.User); err != nil {
			return nil, err
		}

		doc.DocType = docTypeUser
		if _, err := db.Put(ctx, docID(docTypeUser, id), doc); err == nil {
			return &doc.User, nil
		} else if err := classify(err, "failed to update user"); !isRevisionConflict(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to update user %s after %d attempts: %w", id, r.maxRetries, ErrRevisionConflict)
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *userRepository) exists(ctx context.Context, field, value string) (bool, error) {
	_, err := r.findOne(ctx, field, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
