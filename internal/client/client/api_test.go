package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, h http.HandlerFunc) (*APIClient, *MemoryTokenStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := NewMemoryTokenStore("tok")
	gw, err := NewGateway(srv.URL, store)
	require.NoError(t, err)
	return NewAPIClient(gw), store
}

func TestAPIClient_CreateSignedUploadURL(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recordings/create-signed-upload-url", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get(common.AuthorizationHeader))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "visit.wav", in["filename"])
		writeJSON(w, http.StatusOK, map[string]string{"signedUrl": "http://store/put", "path": "u1/visit.wav"})
	})

	got, err := api.CreateSignedUploadURL(context.Background(), "visit.wav")
	require.NoError(t, err)
	assert.Equal(t, models.UploadTarget{DestinationURL: "http://store/put", Path: "u1/visit.wav"}, got)
}

func TestAPIClient_CreateSignedUploadURL_Incomplete(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"path": "u1/visit.wav"})
	})

	_, err := api.CreateSignedUploadURL(context.Background(), "visit.wav")
	require.Error(t, err)
}

func TestAPIClient_Jobs(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			writeJSON(w, http.StatusCreated, map[string]string{"id": "j1", "status": "pending"})
		case r.URL.Path == "/jobs/j1" && r.URL.Query().Get("includeResult") == "true":
			_, _ = w.Write([]byte(`{"transcript_text":"hello","soap_note":{"subjective":"s"}}`))
		case r.URL.Path == "/jobs/j1":
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "errorMessage": "bad audio", "recordingPath": "u1/visit.wav"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		}
	})
	ctx := context.Background()

	job, err := api.CreateJob(ctx, "u1/visit.wav")
	require.NoError(t, err)
	assert.Equal(t, models.Job{ID: "j1", Status: models.JobPending}, job)

	job, err = api.GetJob(ctx, "j1")
	require.NoError(t, err)
	if diff := cmp.Diff(models.Job{ID: "j1", Status: models.JobError, ErrorMessage: "bad audio", RecordingPath: "u1/visit.wav"}, job); diff != "" {
		t.Fatalf("job mismatch (-want +got):\n%s", diff)
	}

	res, err := api.GetJobResult(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.TranscriptText)
	assert.JSONEq(t, `{"subjective":"s"}`, string(res.SOAPNote))

	_, err = api.GetJob(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "job not found", se.Message)
}

func TestAPIClient_CompleteEncounter_ServerMessage(t *testing.T) {
	api, store := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Recording already used"})
	})

	_, err := api.CompleteEncounter(context.Background(), models.EncounterSubmission{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Recording already used", se.Message)

	_, ok := store.Get()
	assert.True(t, ok, "non-auth failures keep the credential")
}

func TestAPIClient_PersistentUnauthorized_IsSessionExpired(t *testing.T) {
	api, store := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "new"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "nope"})
	})

	_, err := api.GetJob(context.Background(), "j1")
	require.ErrorIs(t, err, ErrSessionExpired)

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestAPIClient_Ping(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get(common.AuthorizationHeader))
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	require.NoError(t, api.Ping(context.Background()))
}

func TestStatusError_Is(t *testing.T) {
	assert.ErrorIs(t, &StatusError{Code: 401}, ErrUnauthorized)
	assert.ErrorIs(t, &StatusError{Code: 404}, ErrNotFound)
	assert.ErrorIs(t, &StatusError{Code: 503}, ErrUnavailable)
	assert.NotErrorIs(t, &StatusError{Code: 500}, ErrUnavailable)

	assert.True(t, IsNetworkError(&StatusError{Code: 504}))
	assert.False(t, IsNetworkError(&StatusError{Code: 400}))
	assert.False(t, IsNetworkError(nil))
	assert.Contains(t, (&StatusError{Code: 400, Message: "bad"}).Error(), "bad")
}
