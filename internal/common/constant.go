// Package common contains constants and sentinel errors shared by the client
// and the reference backend.
package common

const (
	// RefreshCookieName carries the opaque refresh token. The client never
	// reads it; its cookie jar replays it to /auth/refresh.
	RefreshCookieName = "refresh_token"

	// AuthorizationHeader carries "Bearer <access token>".
	AuthorizationHeader = "Authorization"

	BearerPrefix = "Bearer "
)

// Job statuses as they appear on the wire.
const (
	JobStatusPending      = "pending"
	JobStatusTranscribing = "transcribing"
	JobStatusGenerating   = "generating"
	JobStatusComplete     = "complete"
	JobStatusError        = "error"
)
