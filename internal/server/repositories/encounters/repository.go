// Package encounters persists approved patient encounters.
package encounters

import (
	"context"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.Encounter) error
}
