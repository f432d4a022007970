package users

import (
	"context"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its id and creation time. A taken
	// email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
