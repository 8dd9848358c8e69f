package user

import (
	"context"
	"errors"
)

// Reader loads users.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

// Service contains business logic for user lookups.
type Service struct {
	repo Reader
}

// NewService creates a new user Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// GetByID returns a user by their id.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
