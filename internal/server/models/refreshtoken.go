package models

import "time"

// RefreshToken is a stored refresh credential. Only the digest of the
// token is persisted.
type RefreshToken struct {
	UserID    string
	TokenHash string
	Expires   time.Time
	CreatedAt time.Time
}
