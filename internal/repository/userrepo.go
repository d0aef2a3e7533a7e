// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/model"
)

// UserRepository stores accounts. Lookups return errs.ErrNotFound for unknown users.
type UserRepository interface {
	// Create inserts u; a taken username yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdatePasswordHash replaces the stored hash, e.g. after a cost upgrade.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}
