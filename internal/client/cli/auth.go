package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for email and password and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	if err := a.authService.Login(ctx, email, password); err != nil {
		a.report(ctx, err)
		return err
	}

	a.setLoggedIn(true)
	a.setMode(ModeOnline)
	a.printf("Signed in as %s\n", email)
	return nil
}

// Logout forgets the credential. The draft is kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		a.report(ctx, err)
		return err
	}
	a.setLoggedIn(false)
	a.printf("Signed out\n")
	return nil
}

// Status checks the stored session against the server.
func (a *App) Status(ctx context.Context) error {
	v, err := a.authService.CheckSession(ctx)
	if err != nil {
		a.report(ctx, err)
		return err
	}
	switch {
	case !v.Valid:
		a.setLoggedIn(false)
		a.printf("%s\n", userMessage(client.ErrSessionExpired))
	case v.Refreshed:
		a.printf("Session renewed\n")
	default:
		a.printf("Session is valid\n")
	}
	return nil
}

// report prints the user-facing message for err. Auth failures also drop
// the signed-in state so the next command asks for a login.
func (a *App) report(ctx context.Context, err error) {
	if errors.Is(err, client.ErrSessionExpired) || errors.Is(err, client.ErrUnauthenticated) {
		a.setLoggedIn(false)
	}
	a.logger.Warn(ctx, "command failed", "error", err)
	a.printf("%s\n", userMessage(err))
}
