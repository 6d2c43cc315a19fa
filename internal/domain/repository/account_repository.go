package repository

import (
	"context"
	"errors"

	"github.com/arcadehub/users-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no account matches the given key.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when an insert collides with the unique
	// email index. The projection consumer treats it as already applied.
	ErrDuplicate = errors.New("account already exists")
)

// AccountRepository is the contract for the queryable read model.
// Writes go through the projection consumer only; the command side uses it
// for lookups and the best-effort email uniqueness pre-check.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GetAll(ctx context.Context) ([]*entity.Account, error)
	Delete(ctx context.Context, id string) error
}
