package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

const notePrompt = `You are a clinical documentation assistant. From the visit transcript, write a SOAP note.
Respond with a single JSON object with exactly these string keys:
"subjective", "objective", "assessment", "plan", "billing_suggestion".
Use plain text inside each value. Do not invent findings that are not in the transcript;
write "Not discussed." for a section with no information. For billing_suggestion give
the most likely E/M or CPT code(s) with a one-line rationale.`

// OpenAIProcessor uses Whisper for transcription and a chat model in JSON
// mode for the note. Rate limits and server errors are retried with
// exponential backoff.
type OpenAIProcessor struct {
	client             *openai.Client
	transcriptionModel string
	chatModel          string
	backoff            func() retry.Backoff
}

type OpenAIOption func(*OpenAIProcessor)

// WithBackoff replaces the retry policy.
func WithBackoff(fn func() retry.Backoff) OpenAIOption {
	return func(p *OpenAIProcessor) { p.backoff = fn }
}

func NewOpenAIProcessor(apiKey, baseURL, transcriptionModel, chatModel string, opts ...OpenAIOption) *OpenAIProcessor {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if strings.TrimSpace(transcriptionModel) == "" {
		transcriptionModel = openai.Whisper1
	}
	if strings.TrimSpace(chatModel) == "" {
		chatModel = "gpt-4o-mini"
	}

	p := &OpenAIProcessor{
		client:             openai.NewClientWithConfig(config),
		transcriptionModel: transcriptionModel,
		chatModel:          chatModel,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProcessor) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var text string
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    p.transcriptionModel,
			FilePath: filename,
			Reader:   bytes.NewReader(audio),
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			return classify(err)
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (p *OpenAIProcessor) GenerateNote(ctx context.Context, transcript string) (models.SOAPNote, error) {
	req := openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: notePrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}

	var content string
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return models.SOAPNote{}, fmt.Errorf("openai completion: %w", err)
	}

	var note models.SOAPNote
	if err := json.Unmarshal([]byte(content), &note); err != nil {
		return models.SOAPNote{}, fmt.Errorf("note is not valid JSON: %w", err)
	}
	if note.Subjective == "" && note.Objective == "" && note.Assessment == "" && note.Plan == "" {
		return models.SOAPNote{}, errors.New("note has no SOAP sections")
	}
	return note, nil
}

// classify marks transient failures retryable; everything else stops the
// retry loop at once.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.RetryableError(err)
	}
	return err
}

func retryableStatus(code int, err error) error {
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return retry.RetryableError(err)
	}
	return err
}
