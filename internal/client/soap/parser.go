// Package soap normalizes a completed job's payload into the plain-text
// fields a clinician reviews: transcript, the four SOAP sections and the
// billing suggestion.
package soap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
)

var ErrMalformedResult = errors.New("malformed job result")

const indent = "  "

var (
	subjectiveKeys = []string{"subjective", "s"}
	objectiveKeys  = []string{"objective", "o"}
	assessmentKeys = []string{"assessment", "a"}
	planKeys       = []string{"plan", "p"}
	billingKeys    = []string{"billingsuggestion", "billingsuggestions", "billing", "billingcodes"}
)

// Parse is pure: the same input always yields the same Note.
func Parse(raw models.RawResult) (models.Note, error) {
	sections, err := decodeSOAP(raw.SOAPNote)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: soap_note: %v", ErrMalformedResult, err)
	}

	note := models.Note{
		Transcript: strings.TrimSpace(raw.TranscriptText),
		Subjective: section(sections, subjectiveKeys),
		Objective:  section(sections, objectiveKeys),
		Assessment: section(sections, assessmentKeys),
		Plan:       section(sections, planKeys),
	}

	note.BillingSuggestion = section(sections, billingKeys)
	if note.BillingSuggestion == "" {
		billing, err := decodeLoose(raw.BillingSuggestion)
		if err != nil {
			return models.Note{}, fmt.Errorf("%w: billing_suggestion: %v", ErrMalformedResult, err)
		}
		note.BillingSuggestion = clean(render(billing))
	}
	return note, nil
}

// decodeSOAP accepts the note as an object, or as a string holding the
// object's JSON text, possibly encoded more than once.
func decodeSOAP(raw json.RawMessage) (object, error) {
	if isNull(raw) {
		return nil, nil
	}

	v, err := decodeRepaired(string(raw))
	if err != nil {
		return nil, err
	}

	for range 3 {
		s, ok := v.(string)
		if !ok {
			break
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if v, err = decodeRepaired(s); err != nil {
			return nil, err
		}
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case object:
		return t, nil
	}
	return nil, fmt.Errorf("got %T, want an object", v)
}

// decodeLoose decodes a value that may legitimately be plain text.
func decodeLoose(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	v, err := decodeRepaired(string(raw))
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if nested, err := decodeRepaired(trimmed); err == nil {
				return nested, nil
			}
		}
	}
	return v, nil
}

func decodeRepaired(s string) (any, error) {
	v, err := decodeOrdered([]byte(s))
	if err == nil {
		return v, nil
	}
	v, rerr := decodeOrdered([]byte(repair(s)))
	if rerr != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func section(o object, names []string) string {
	for _, f := range o {
		k := normalizeKey(f.key)
		for _, n := range names {
			if k == n {
				return clean(render(f.value))
			}
		}
	}
	return ""
}

func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clean maps placeholder text produced by loosely typed backends to empty.
func clean(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "null", "undefined":
		return ""
	}
	return s
}

// render flattens a decoded value into indented plain text:
//
//	Key:
//	  value
//
// recursively, with keys in source order.
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := render(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	case object:
		blocks := make([]string, 0, len(t))
		for _, f := range t {
			body := render(f.value)
			if body == "" {
				blocks = append(blocks, titleCase(f.key)+":")
				continue
			}
			blocks = append(blocks, titleCase(f.key)+":\n"+indentLines(body))
		}
		return strings.Join(blocks, "\n")
	}
	return fmt.Sprint(v)
}

func indentLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = indent + l
	}
	return strings.Join(lines, "\n")
}

// titleCase turns "chief_complaint" into "Chief Complaint".
func titleCase(k string) string {
	words := strings.Fields(strings.ReplaceAll(k, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
