package soap

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(transcript, soapNote string) models.RawResult {
	r := models.RawResult{TranscriptText: transcript}
	if soapNote != "" {
		r.SOAPNote = json.RawMessage(soapNote)
	}
	return r
}

func quoted(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   models.RawResult
		want models.Note
	}{
		{
			name: "object with plain strings",
			in: raw("hello doctor", `{
				"subjective": "Cough for 3 days",
				"objective": "T 37.9",
				"assessment": "URI",
				"plan": "Fluids",
				"billing_suggestion": "99213"
			}`),
			want: models.Note{
				Transcript: "hello doctor", Subjective: "Cough for 3 days", Objective: "T 37.9",
				Assessment: "URI", Plan: "Fluids", BillingSuggestion: "99213",
			},
		},
		{
			name: "string holding JSON",
			in:   raw("t", quoted(`{"subjective":"s","objective":"o","assessment":"a","plan":"p"}`)),
			want: models.Note{Transcript: "t", Subjective: "s", Objective: "o", Assessment: "a", Plan: "p"},
		},
		{
			name: "fenced string with trailing commas and raw newlines",
			in:   raw("t", quoted("```json\n{\"subjective\": \"line one\nline two\", \"plan\": \"rest\",}\n```")),
			want: models.Note{Transcript: "t", Subjective: "line one\nline two", Plan: "rest"},
		},
		{
			name: "stray wrapping quotes",
			in:   raw("t", quoted(`'{"assessment": "stable"}'`)),
			want: models.Note{Transcript: "t", Assessment: "stable"},
		},
		{
			name: "nested values flattened in source order",
			in: raw("t", `{
				"subjective": {"chief_complaint": "Headache", "history_of_present_illness": {"onset": "2 days", "severity": 7}},
				"plan": ["Ibuprofen", "Follow up in 1 week"]
			}`),
			want: models.Note{
				Transcript: "t",
				Subjective: "Chief Complaint:\n  Headache\nHistory Of Present Illness:\n  Onset:\n    2 days\n  Severity:\n    7",
				Plan:       "Ibuprofen\nFollow up in 1 week",
			},
		},
		{
			name: "null and missing fields are empty",
			in:   raw("t", `{"subjective": null, "objective": "undefined", "assessment": ""}`),
			want: models.Note{Transcript: "t"},
		},
		{
			name: "missing soap note",
			in:   raw("only transcript", ""),
			want: models.Note{Transcript: "only transcript"},
		},
		{
			name: "capitalised keys",
			in:   raw("t", `{"Subjective": "s", "Objective": "o", "Assessment": "a", "Plan": "p", "Billing Suggestion": "b"}`),
			want: models.Note{Transcript: "t", Subjective: "s", Objective: "o", Assessment: "a", Plan: "p", BillingSuggestion: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("note mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_TopLevelBilling(t *testing.T) {
	in := raw("t", `{"plan": "p"}`)
	in.BillingSuggestion = json.RawMessage(`{"cpt": ["99214"], "icd10": "J06.9"}`)

	got, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "Cpt:\n  99214\nIcd10:\n  J06.9", got.BillingSuggestion)
}

func TestParse_SOAPBillingWins(t *testing.T) {
	in := raw("t", `{"billing_suggestion": "from note"}`)
	in.BillingSuggestion = json.RawMessage(`"top level"`)

	got, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "from note", got.BillingSuggestion)
}

func TestParse_PlainTextBilling(t *testing.T) {
	in := raw("t", `{}`)
	in.BillingSuggestion = json.RawMessage(`"99213 - established patient"`)

	got, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "99213 - established patient", got.BillingSuggestion)
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		quoted("the model refused to answer"),
		quoted(`{"subjective": "unterminated`),
		`42`,
		`["a","b"]`,
	} {
		_, err := Parse(raw("t", in))
		require.ErrorIs(t, err, ErrMalformedResult, in)
	}
}

func TestParse_Idempotent(t *testing.T) {
	in := raw(" t ", quoted("```\n{\"subjective\": {\"a_b\": [1, true, null]},}\n```"))

	first, err := Parse(in)
	require.NoError(t, err)
	second, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "A B:\n  1\n  true", first.Subjective)
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"a":1}`, repair("```json\n{\"a\":1,}\n```"))
	assert.Equal(t, `{"a":"x\ny"}`, repair("{\"a\":\"x\ny\"}"))
	assert.Equal(t, `[1,2]`, repair(`"[1,2,]"`))
	assert.Equal(t, `{"a":"b"}`, repair("{\"a\":\"b\x01\"}"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Chief Complaint", titleCase("chief_complaint"))
	assert.Equal(t, "HPI", titleCase("HPI"))
	assert.Equal(t, "Review Of Systems", titleCase("review of_systems"))
}
