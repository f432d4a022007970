// Package client contains the client-side transport for the EncounterScribe
// backend.
//
// # Overview
//
// The package provides:
//  1. TokenStore, the single owner of the access credential, with an
//     in-memory and a SQLite-backed implementation.
//  2. Gateway, the authenticated fetch: it attaches the bearer token, and on
//     a 401 performs exactly one refresh (shared by concurrent callers) and
//     one retry.
//  3. APIClient, the REST contract (see the Client interface) built on top
//     of the Gateway.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors matched with errors.Is:
// ErrUnauthenticated, ErrSessionExpired, ErrNotFound, ErrUnavailable.
// Non-2xx answers are *StatusError carrying the server's message;
// transport failures are *NetworkError. IsNetworkError classifies both for
// retry decisions.
//
// Concurrency & Contexts
//
// Gateway and the token stores are safe for concurrent use. All operations
// accept context.Context and honor cancellation.
package client
