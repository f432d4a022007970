// Package refreshtokens declares the server-side repository contract for
// refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

// Repository stores refresh tokens by digest. Callers never pass the raw
// token.
type Repository interface {
	// Create stores a token digest for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, tokenHash string, validity time.Duration) error

	// Find returns common.ErrNotFound when the digest is absent.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Delete reports whether a row was removed. Deleting an absent digest
	// is not an error.
	Delete(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes every token that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
