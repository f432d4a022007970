// Package services contains application services for the EncounterScribe
// client. This file defines the authentication service: sign in and out, a
// liveness probe, session checks and housekeeping of local data.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: exchange email and password for a stored credential.
//   - Logout: drop the credential locally and, best-effort, on the server.
//   - Ping: check server liveness without a credential.
//   - CheckSession: validate the stored credential, refreshing once.
//   - ClearLocalData: wipe every locally persisted value.
//
// All methods honor context cancellation.
type AuthService interface {
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	CheckSession(ctx context.Context) (client.Validity, error)
	ClearLocalData(ctx context.Context) error
}

// Authenticator is the credential side of the gateway.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	Invalidate()
}

type authService struct {
	auth   Authenticator
	api    client.Client
	db     *sql.DB
	logger logging.Logger
}

// NewAuthService constructs an AuthService bound to the gateway, API client
// and local database.
func NewAuthService(auth Authenticator, api client.Client, db *sql.DB, logger logging.Logger) AuthService {
	return &authService{auth: auth, api: api, db: db, logger: logger}
}

func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	if err := a.auth.Login(ctx, email, string(password)); err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	a.logger.Info(ctx, "signed in", "email", email)
	return nil
}

// Logout keeps the draft: an encounter in progress survives a sign-out.
func (a *authService) Logout(ctx context.Context) error {
	a.auth.Logout(ctx)
	repo := metadata.NewSQLiteRepository(a.db)
	for _, key := range []string{metadata.KeyLastJobID, metadata.KeyLastJobStatus, metadata.KeyLastJobRecordingPath} {
		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.api.Ping(ctx)
}

func (a *authService) CheckSession(ctx context.Context) (client.Validity, error) {
	return a.api.CheckValidity(ctx)
}

// ClearLocalData wipes all locally cached data, including the credential
// and the draft, in one transaction.
func (a *authService) ClearLocalData(ctx context.Context) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	a.auth.Invalidate()
	return nil
}
