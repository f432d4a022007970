package jobs

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

var jobColumns = []string{"id", "user_id", "recording_path", "status", "error_message",
	"transcript_text", "soap_note", "billing_suggestion", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+jobs\s*\(id,\s*user_id,\s*recording_path,\s*status\).*RETURNING\s+created_at,\s*updated_at`).
		WithArgs("j1", "u1", "u1/rec.wav", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	job := &models.Job{ID: "j1", UserID: "u1", RecordingPath: "u1/rec.wav", Status: models.JobPending}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.True(t, job.CreatedAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+jobs`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Job{ID: "j1"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGet_ScopedToUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+jobs\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`).
		WithArgs("j1", "u1").
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("j1", "u1", "u1/rec.wav", "complete", "", "hello", []byte(`{"subjective":"s"}`), "99213", now, now))

	job, err := repo.Get(context.Background(), "j1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobComplete, job.Status)
	assert.Equal(t, "hello", job.TranscriptText)
	assert.JSONEq(t, `{"subjective":"s"}`, string(job.SOAPNote))
	assert.Equal(t, "99213", job.BillingSuggestion)
}

func TestGet_NullSOAPNote(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`FROM\s+jobs`).
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("j1", "u1", "p", "pending", "", "", nil, "", now, now))

	job, err := repo.GetByID(context.Background(), "j1")
	require.NoError(t, err)
	assert.Nil(t, job.SOAPNote)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+jobs`).WithArgs("j1", "other").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "j1", "other")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+jobs\s+SET\s+status\s*=\s*\$2`).
		WithArgs("j1", "transcribing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+jobs\s+SET\s+status\s*=\s*\$2`).
		WithArgs("missing", "generating").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetStatus(context.Background(), "j1", models.JobTranscribing))
	assert.ErrorIs(t, repo.SetStatus(context.Background(), "missing", models.JobGenerating), common.ErrNotFound)
}

func TestComplete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+jobs\s+SET\s+status\s*=\s*\$2,\s*transcript_text\s*=\s*\$3,\s*soap_note\s*=\s*\$4::jsonb`).
		WithArgs("j1", "complete", "text", `{"plan":"p"}`, "99213").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(context.Background(), "j1", "text", []byte(`{"plan":"p"}`), "99213"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+jobs\s+SET\s+status\s*=\s*\$2,\s*error_message\s*=\s*\$3`).
		WithArgs("j1", "error", "audio unreadable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Fail(context.Background(), "j1", "audio unreadable"))
}

func TestListUnfinished(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+id\s+FROM\s+jobs\s+WHERE\s+status\s+NOT\s+IN`).
		WithArgs("complete", "error").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("j1").AddRow("j2"))

	ids, err := repo.ListUnfinished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, ids)
}
