package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := metadata.OpenDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ---- fakes ----

type fakeAuth struct {
	LoginErr    error
	LastEmail   string
	LastPass    string
	LoggedOut   bool
	Invalidated bool
}

func (f *fakeAuth) Login(_ context.Context, email, password string) error {
	f.LastEmail, f.LastPass = email, password
	return f.LoginErr
}

func (f *fakeAuth) Logout(context.Context) { f.LoggedOut = true }

func (f *fakeAuth) Invalidate() { f.Invalidated = true }

type fakeClient struct {
	client.Client

	PingErr  error
	Validity client.Validity
	ValidErr error
}

func (f *fakeClient) Ping(context.Context) error { return f.PingErr }

func (f *fakeClient) CheckValidity(context.Context) (client.Validity, error) {
	return f.Validity, f.ValidErr
}

// ---- tests ----

func TestAuthService_Login(t *testing.T) {
	fa := &fakeAuth{}
	svc := NewAuthService(fa, &fakeClient{}, setupDB(t), logging.NewNop())

	require.NoError(t, svc.Login(context.Background(), "dr@example.com", []byte("s3cret")))
	assert.Equal(t, "dr@example.com", fa.LastEmail)
	assert.Equal(t, "s3cret", fa.LastPass)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	fa := &fakeAuth{LoginErr: client.ErrInvalidCredentials}
	svc := NewAuthService(fa, &fakeClient{}, setupDB(t), logging.NewNop())

	err := svc.Login(context.Background(), "dr@example.com", []byte("nope"))
	require.ErrorIs(t, err, client.ErrInvalidCredentials)
}

func TestAuthService_Logout_KeepsDraftDropsJob(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := metadata.NewSQLiteRepository(db)
	require.NoError(t, metadata.SetText(ctx, repo, "draft.plan", "rest"))
	require.NoError(t, metadata.SetText(ctx, repo, metadata.KeyLastJobID, "job-1"))

	fa := &fakeAuth{}
	svc := NewAuthService(fa, &fakeClient{}, db, logging.NewNop())
	require.NoError(t, svc.Logout(ctx))

	assert.True(t, fa.LoggedOut)
	_, ok, err := metadata.GetText(ctx, repo, "draft.plan")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = metadata.GetText(ctx, repo, metadata.KeyLastJobID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_PingAndCheckSession(t *testing.T) {
	fc := &fakeClient{PingErr: errors.New("down"), Validity: client.Validity{Valid: true, Refreshed: true}}
	svc := NewAuthService(&fakeAuth{}, fc, setupDB(t), logging.NewNop())

	require.EqualError(t, svc.Ping(context.Background()), "down")

	v, err := svc.CheckSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.Validity{Valid: true, Refreshed: true}, v)
}

func TestAuthService_ClearLocalData(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := metadata.NewSQLiteRepository(db)
	require.NoError(t, repo.Set(ctx, metadata.KeyAccessToken, []byte(`"tok"`)))
	require.NoError(t, repo.Set(ctx, "draft.name", []byte(`"Jane"`)))

	fa := &fakeAuth{}
	svc := NewAuthService(fa, &fakeClient{}, db, logging.NewNop())
	require.NoError(t, svc.ClearLocalData(ctx))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.True(t, fa.Invalidated)
}
