package encounters

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*************
 * Helpers
 *************/

type fakeAPI struct {
	id    string
	err   error
	calls int
	last  models.EncounterSubmission
}

func (f *fakeAPI) CompleteEncounter(_ context.Context, s models.EncounterSubmission) (string, error) {
	f.calls++
	f.last = s
	return f.id, f.err
}

func setup(t *testing.T) (*sql.DB, *metadata.SQLiteRepository, *DraftStore) {
	t.Helper()
	db, err := metadata.OpenDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := metadata.NewSQLiteRepository(db)
	store, err := NewDraftStore(context.Background(), repo, db, logging.NewNop())
	require.NoError(t, err)
	return db, repo, store
}

func fullDraft() models.Draft {
	return models.Draft{
		Name: "Jane Roe", Transcript: "t", Subjective: "s", Objective: "o",
		Assessment: "a", Plan: "p", BillingSuggestion: "99213", RecordingPath: "u1/visit.wav",
	}
}

func fill(t *testing.T, s *DraftStore, d models.Draft) {
	t.Helper()
	for _, f := range Fields {
		require.NoError(t, s.Set(context.Background(), f, get(&d, f)))
	}
}

/*************
 * Draft store
 *************/

func TestDraftStore_PersistsEveryChange(t *testing.T) {
	ctx := context.Background()
	db, repo, s := setup(t)

	text := "He said \"it hurts\"\nand left.\tDone"
	require.NoError(t, s.Set(ctx, FieldTranscript, text))

	got, ok, err := metadata.GetText(ctx, repo, "draft.transcript")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, text, got)

	reloaded, err := NewDraftStore(ctx, repo, db, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, text, reloaded.Draft().Transcript)
}

func TestDraftStore_LegacyRawValues(t *testing.T) {
	ctx := context.Background()
	db, repo, _ := setup(t)

	require.NoError(t, repo.Set(ctx, "draft.plan", []byte("rest and fluids")))
	require.NoError(t, repo.Set(ctx, "draft.name", []byte(`"Jane"`)))

	s, err := NewDraftStore(ctx, repo, db, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "rest and fluids", s.Draft().Plan)
	assert.Equal(t, "Jane", s.Draft().Name)
}

func TestDraftStore_SubscribersNotified(t *testing.T) {
	ctx := context.Background()
	_, _, s := setup(t)

	var seen []models.Draft
	unsubscribe := s.Subscribe(func(d models.Draft) { seen = append(seen, d) })

	require.NoError(t, s.Set(ctx, FieldName, "A"))
	require.NoError(t, s.Set(ctx, FieldPlan, "P"))
	unsubscribe()
	require.NoError(t, s.Set(ctx, FieldPlan, "ignored"))

	require.Len(t, seen, 2)
	assert.Equal(t, "A", seen[1].Name)
	assert.Equal(t, "P", seen[1].Plan)
}

func TestDraftStore_UnknownField(t *testing.T) {
	_, _, s := setup(t)
	require.ErrorIs(t, s.Set(context.Background(), Field("diagnosis"), "x"), ErrUnknownField)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("billing")
	require.NoError(t, err)
	assert.Equal(t, FieldBillingSuggestion, f)

	f, err = ParseField("plan")
	require.NoError(t, err)
	assert.Equal(t, FieldPlan, f)

	_, err = ParseField("nope")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestDraftStore_ApplyNote(t *testing.T) {
	ctx := context.Background()
	_, _, s := setup(t)

	require.NoError(t, s.Set(ctx, FieldName, "Jane Roe"))
	require.NoError(t, s.AttachRecording(ctx, "u1/a.wav"))
	require.NoError(t, s.ApplyNote(ctx, "u1/a.wav", models.Note{Transcript: "t", Plan: "p"}))

	d := s.Draft()
	assert.Equal(t, "Jane Roe", d.Name)
	assert.Equal(t, "u1/a.wav", d.RecordingPath)
	assert.Equal(t, "t", d.Transcript)
	assert.Equal(t, "p", d.Plan)
}

func TestDraftStore_StaleRecordingRejected(t *testing.T) {
	ctx := context.Background()
	_, _, s := setup(t)

	require.NoError(t, s.AttachRecording(ctx, "u1/new.wav"))
	err := s.ApplyNote(ctx, "u1/old.wav", models.Note{Transcript: "old"})
	require.ErrorIs(t, err, ErrStaleRecording)
	assert.Empty(t, s.Draft().Transcript)
}

func TestDraftStore_NewRecordingClearsGeneratedText(t *testing.T) {
	ctx := context.Background()
	_, _, s := setup(t)
	fill(t, s, fullDraft())

	require.NoError(t, s.AttachRecording(ctx, "u1/other.wav"))

	assert.Equal(t, models.Draft{Name: "Jane Roe", RecordingPath: "u1/other.wav"}, s.Draft())
}

/*************
 * Submitter
 *************/

func TestValidate_AllSevenMissing(t *testing.T) {
	err := Validate(models.Draft{Name: "  ", Plan: "\n"})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"name", "transcript", "subjective", "objective", "assessment", "plan", "billing suggestion"}, ve.MissingFields)
	assert.Equal(t, "missing required fields: name, transcript, subjective, objective, assessment, plan, billing suggestion", ve.Error())
}

func TestValidate_Complete(t *testing.T) {
	require.NoError(t, Validate(fullDraft()))
}

func TestSubmit_ValidationDoesNotCallServer(t *testing.T) {
	_, _, s := setup(t)
	api := &fakeAPI{}
	sub := NewSubmitter(api, s, nil, logging.NewNop())

	_, err := sub.Submit(context.Background(), models.Draft{Name: "x"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.MissingFields, 6)
	assert.Zero(t, api.calls)
}

func TestSubmit_SuccessClearsDraft(t *testing.T) {
	ctx := context.Background()
	_, repo, s := setup(t)
	fill(t, s, fullDraft())
	require.NoError(t, upload.SaveMetadata(ctx, repo, models.RecordingMetadata{Path: "u1/visit.wav", DurationSeconds: 61}))
	require.NoError(t, metadata.SetText(ctx, repo, metadata.KeyLastJobID, "job-1"))

	var reset bool
	s.Subscribe(func(d models.Draft) { reset = d == models.Draft{} })

	api := &fakeAPI{id: "enc-1"}
	sub := NewSubmitter(api, s, repo, logging.NewNop())

	id, err := sub.Submit(ctx, s.Draft())
	require.NoError(t, err)
	assert.Equal(t, "enc-1", id)

	assert.Equal(t, "Jane Roe", api.last.PatientEncounter.Name)
	assert.Equal(t, "u1/visit.wav", api.last.Recording.Path)
	assert.Equal(t, 61.0, api.last.Recording.DurationSeconds)
	assert.Equal(t, "99213", api.last.SOAPNoteText.BillingSuggestion)

	assert.True(t, reset)
	assert.Equal(t, models.Draft{}, s.Draft())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	for k := range all {
		assert.NotContains(t, k, metadata.DraftPrefix)
	}
	assert.NotContains(t, all, metadata.KeyRecordingMetadata)
	assert.Contains(t, all, metadata.KeyLastJobID)
}

func TestSubmit_ServerRejectionPreservesDraft(t *testing.T) {
	ctx := context.Background()
	db, repo, s := setup(t)
	fill(t, s, fullDraft())

	api := &fakeAPI{err: &client.StatusError{Code: http.StatusBadRequest, Message: "Patient encounter name already exists"}}
	sub := NewSubmitter(api, s, repo, logging.NewNop())

	_, err := sub.Submit(ctx, s.Draft())

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Patient encounter name already exists", se.Error())
	assert.Equal(t, fullDraft(), s.Draft())

	reloaded, err := NewDraftStore(ctx, repo, db, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, fullDraft(), reloaded.Draft())
}

func TestSubmit_AuthAndNetworkErrorsPassThrough(t *testing.T) {
	_, _, s := setup(t)
	fill(t, s, fullDraft())

	for _, e := range []error{client.ErrSessionExpired, &client.NetworkError{Err: errors.New("offline")}} {
		sub := NewSubmitter(&fakeAPI{err: e}, s, nil, logging.NewNop())
		_, err := sub.Submit(context.Background(), s.Draft())
		require.ErrorIs(t, err, e)
		assert.Equal(t, fullDraft(), s.Draft())
	}
}
