package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	encountersrepo "github.com/dmitrijs2005/encounterscribe/internal/server/repositories/encounters"
	jobsrepo "github.com/dmitrijs2005/encounterscribe/internal/server/repositories/jobs"
	refreshtokensrepo "github.com/dmitrijs2005/encounterscribe/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/encounterscribe/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	getErr  error
}

func newFakeUsers() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	u.ID = "user-" + u.Email
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

type fakeRefreshRepo struct {
	mu        sync.Mutex
	tokens    map[string]models.RefreshToken
	findErr   error
	delErr    error
	createErr error
}

func newFakeRefresh() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, tokenHash string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[tokenHash] = models.RefreshToken{UserID: userID, TokenHash: tokenHash, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.tokens[tokenHash]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &t, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return false, f.delErr
	}
	_, ok := f.tokens[tokenHash]
	delete(f.tokens, tokenHash)
	return ok, nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.Expires.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakeJobsRepo struct {
	mu        sync.Mutex
	jobs      map[string]*models.Job
	createErr error
}

func newFakeJobs() *fakeJobsRepo {
	return &fakeJobsRepo{jobs: map[string]*models.Job{}}
}

func (f *fakeJobsRepo) Create(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobsRepo) Get(_ context.Context, id, userID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobsRepo) GetByID(_ context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobsRepo) SetStatus(_ context.Context, id string, status models.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Status = status
	return nil
}

func (f *fakeJobsRepo) Complete(_ context.Context, id, transcript string, soapNote []byte, billing string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Status, j.TranscriptText, j.SOAPNote, j.BillingSuggestion = models.JobComplete, transcript, soapNote, billing
	return nil
}

func (f *fakeJobsRepo) Fail(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Status, j.ErrorMessage = models.JobError, message
	return nil
}

func (f *fakeJobsRepo) ListUnfinished(context.Context) ([]string, error) { return nil, nil }

type fakeEncountersRepo struct {
	saved []*models.Encounter
	err   error
}

func (f *fakeEncountersRepo) Create(_ context.Context, e *models.Encounter) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, e)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	j *fakeJobsRepo
	e *fakeEncountersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsers(), r: newFakeRefresh(), j: newFakeJobs(), e: &fakeEncountersRepo{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error            { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Jobs(dbx.DBTX) jobsrepo.Repository                   { return m.j }
func (m *fakeRepoManager) Encounters(dbx.DBTX) encountersrepo.Repository       { return m.e }

type fakeStore struct {
	objects map[string]string
	signErr error
	headErr error
}

func (f *fakeStore) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://s3/put/" + key + "?ct=" + contentType, nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://s3/get/" + key, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if f.headErr != nil {
		return false, f.headErr
	}
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type fakeQueue struct {
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}
