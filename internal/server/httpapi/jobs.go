package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/dmitrijs2005/encounterscribe/internal/server/services"
	"github.com/gin-gonic/gin"
)

type createJobRequest struct {
	RecordingPath string `json:"recordingPath"`
}

type jobResponse struct {
	ID            string           `json:"id"`
	Status        models.JobStatus `json:"status"`
	ErrorMessage  string           `json:"errorMessage,omitempty"`
	RecordingPath string           `json:"recordingPath"`
}

func newJobResponse(j *models.Job) jobResponse {
	return jobResponse{ID: j.ID, Status: j.Status, ErrorMessage: j.ErrorMessage, RecordingPath: j.RecordingPath}
}

type jobResultResponse struct {
	TranscriptText    string          `json:"transcript_text"`
	SOAPNote          json.RawMessage `json:"soap_note"`
	BillingSuggestion string          `json:"billing_suggestion,omitempty"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	job, err := s.jobs.Create(c.Request.Context(), userIDFromContext(c), req.RecordingPath)
	if err != nil {
		if errors.Is(err, services.ErrRecordingMissing) {
			c.JSON(http.StatusNotFound, gin.H{"message": "recording not found, upload it first"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

// getJob returns the job status, or with includeResult=true the finished
// transcript and note.
func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	includeResult, _ := strconv.ParseBool(c.Query("includeResult"))
	if !includeResult {
		c.JSON(http.StatusOK, newJobResponse(job))
		return
	}

	if job.Status != models.JobComplete {
		c.JSON(http.StatusConflict, gin.H{"message": "job is not complete", "status": job.Status})
		return
	}
	note := job.SOAPNote
	if len(note) == 0 {
		note = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, jobResultResponse{
		TranscriptText:    job.TranscriptText,
		SOAPNote:          note,
		BillingSuggestion: job.BillingSuggestion,
	})
}
