package repository

import (
	"context"

	"github.com/utafrali/storefront/services/account/internal/domain"
)

// AccountRepository defines the persistence operations for accounts.
type AccountRepository interface {
	// Create inserts a new account. A taken email yields a Conflict error.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByEmail retrieves an account by email, ignoring case.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}
