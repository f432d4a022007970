package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/encounterscribe/internal/server/services"
	"github.com/gin-gonic/gin"
)

type completeEncounterRequest struct {
	PatientEncounter struct {
		Name string `json:"name"`
	} `json:"patientEncounter"`
	Recording struct {
		Path            string  `json:"path"`
		DurationSeconds float64 `json:"durationSeconds"`
	} `json:"recording"`
	Transcript struct {
		Text string `json:"transcript_text"`
	} `json:"transcript"`
	SOAPNote struct {
		Subjective        string `json:"subjective"`
		Objective         string `json:"objective"`
		Assessment        string `json:"assessment"`
		Plan              string `json:"plan"`
		BillingSuggestion string `json:"billing_suggestion"`
	} `json:"soapNote_text"`
}

func (r completeEncounterRequest) input() services.EncounterInput {
	return services.EncounterInput{
		Name:              r.PatientEncounter.Name,
		RecordingPath:     r.Recording.Path,
		DurationSeconds:   r.Recording.DurationSeconds,
		Transcript:        r.Transcript.Text,
		Subjective:        r.SOAPNote.Subjective,
		Objective:         r.SOAPNote.Objective,
		Assessment:        r.SOAPNote.Assessment,
		Plan:              r.SOAPNote.Plan,
		BillingSuggestion: r.SOAPNote.BillingSuggestion,
	}
}

func (s *Server) completeEncounter(c *gin.Context) {
	var req completeEncounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id, err := s.encounters.Complete(c.Request.Context(), userIDFromContext(c), req.input())
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			badRequest(c, verr.Error())
		case errors.Is(err, services.ErrRecordingMissing):
			badRequest(c, "recording not found")
		default:
			s.fail(c, err)
		}
		return
	}

	s.logger.Info(c.Request.Context(), "encounter saved", "encounter_id", id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}
