package encounters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+encounters.*RETURNING\s+created_at`).
		WithArgs("e1", "u1", "Jane Doe", "u1/rec.wav", 75.5, "transcript", "s", "o", "a", "p", "99213").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	e := &models.Encounter{
		ID: "e1", UserID: "u1", Name: "Jane Doe", RecordingPath: "u1/rec.wav", DurationSeconds: 75.5,
		Transcript: "transcript", Subjective: "s", Objective: "o", Assessment: "a", Plan: "p",
		BillingSuggestion: "99213",
	}
	require.NoError(t, NewPostgresRepository(db).Create(context.Background(), e))
	assert.True(t, e.CreatedAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+encounters`).WillReturnError(errors.New("db down"))

	err = NewPostgresRepository(db).Create(context.Background(), &models.Encounter{ID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
