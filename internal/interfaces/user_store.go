package interfaces

import (
	"context"

	"github.com/banksys/banking-backend/internal/models"
)

// UserStore persists authenticated identities. Usernames are unique;
// CreateUser fails with errs.ErrInvalidArgument on a duplicate.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}
