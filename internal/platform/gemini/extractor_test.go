package gemini

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/meetflow/meetflow-api/internal/config"
	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/extraction"
)

// newTestExtractor builds an extractor whose model calls are served by fn,
// bypassing the real API client.
func newTestExtractor(t *testing.T, fn generateFunc) *GeminiExtractor {
	t.Helper()

	promptTemplate, err := template.New("extraction").Parse(extractionPromptTemplate)
	require.NoError(t, err)

	logger := slog.Default()
	return &GeminiExtractor{
		logger:         logger,
		config:         config.LLMConfig{MaxRetries: 1, RetryDelaySeconds: 1},
		promptTemplate: promptTemplate,
		generate:       fn,
		normalizer:     extraction.NewNormalizer(logger),
	}
}

// textResponse wraps raw model output in a minimal API response.
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestGeminiExtractor_BuildPrompt(t *testing.T) {
	t.Parallel()

	extractor := newTestExtractor(t, nil)

	t.Run("includes subject and body", func(t *testing.T) {
		t.Parallel()

		prompt, err := extractor.buildPrompt("Sprint Planning", "Sarah will write specs by Friday.")
		require.NoError(t, err)
		assert.Contains(t, prompt, `Email Subject: "Sprint Planning"`)
		assert.Contains(t, prompt, `Email Content: "Sarah will write specs by Friday."`)
		assert.Contains(t, prompt, "Return the data in this exact JSON format")
	})

	t.Run("carries the naming rules", func(t *testing.T) {
		t.Parallel()

		prompt, err := extractor.buildPrompt("Sprint Planning", "Sarah will write specs by Friday.")
		require.NoError(t, err)
		assert.Contains(t, prompt, "Use first names only for assignees")
		assert.Contains(t, prompt, "Never use a company or organization name")
		assert.Contains(t, prompt, "Be conservative with due dates")
	})

	t.Run("rejects empty body", func(t *testing.T) {
		t.Parallel()

		_, err := extractor.buildPrompt("Subject", "")
		assert.ErrorIs(t, err, domain.ErrEmptyEmailBody)
	})
}

func TestGeminiExtractor_CheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("healthy model", func(t *testing.T) {
		t.Parallel()

		var gotPrompt string
		extractor := newTestExtractor(t, func(_ context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			gotPrompt = prompt
			return textResponse("OK"), nil
		})

		require.NoError(t, extractor.CheckConnection(context.Background()))
		assert.Equal(t, connectionCheckPrompt, gotPrompt)
	})

	t.Run("unreachable model", func(t *testing.T) {
		t.Parallel()

		extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("connection refused")
		})

		err := extractor.CheckConnection(context.Background())
		assert.ErrorIs(t, err, extraction.ErrServiceFailure)
	})

	t.Run("empty response", func(t *testing.T) {
		t.Parallel()

		extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		})

		err := extractor.CheckConnection(context.Background())
		assert.ErrorIs(t, err, extraction.ErrServiceFailure)
	})
}

func TestGeminiExtractor_ExtractMeetingData(t *testing.T) {
	t.Parallel()

	modelOutput := `Here is the extracted data:
{
  "summary": "Team agreed on the sprint scope.",
  "action_items": [
    {"id": "ai_1", "task": "Write specs", "assignee": "Sarah", "due_date": "2025-06-20", "priority": "high", "completed": false}
  ],
  "participants": ["Sarah", "Bob"],
  "meeting_date": "2025-06-15"
}`

	extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
		return textResponse(modelOutput), nil
	})

	meeting, err := extractor.ExtractMeetingData(context.Background(), "Sprint Planning", "Notes from the meeting.")
	require.NoError(t, err)

	assert.Equal(t, "Team agreed on the sprint scope.", meeting.Summary)
	assert.Equal(t, "2025-06-15", meeting.MeetingDate)
	assert.Equal(t, []string{"Sarah", "Bob"}, meeting.Participants)
	require.Len(t, meeting.ActionItems, 1)
	assert.Equal(t, "Write specs", meeting.ActionItems[0].Task)
	assert.Equal(t, domain.PriorityHigh, meeting.ActionItems[0].Priority)
}

func TestGeminiExtractor_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("rate limited")
		}
		return textResponse(`{"summary": "Recovered.", "action_items": [], "participants": []}`), nil
	})

	meeting, err := extractor.ExtractMeetingData(context.Background(), "Subject", "Body text.")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "transient failure should be retried")
	assert.Equal(t, "Recovered.", meeting.Summary)
}

func TestGeminiExtractor_ExhaustedRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, errors.New("service unavailable")
	})

	_, err := extractor.ExtractMeetingData(context.Background(), "Subject", "Body text.")
	assert.ErrorIs(t, err, extraction.ErrServiceFailure)
	assert.Equal(t, 2, calls, "one initial attempt plus one retry")
}

func TestGeminiExtractor_BlockedContentIsPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{FinishReason: genai.FinishReasonSafety},
			},
		}, nil
	})

	_, err := extractor.ExtractMeetingData(context.Background(), "Subject", "Body text.")
	assert.ErrorIs(t, err, extraction.ErrContentBlocked)
	assert.Equal(t, 1, calls, "blocked content must not be retried")
}

func TestGeminiExtractor_UnparseableResponse(t *testing.T) {
	t.Parallel()

	extractor := newTestExtractor(t, func(context.Context, string) (*genai.GenerateContentResponse, error) {
		return textResponse("I could not find any meeting information in this email."), nil
	})

	_, err := extractor.ExtractMeetingData(context.Background(), "Subject", "Body text.")
	assert.ErrorIs(t, err, extraction.ErrResponseNotParseable)
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	t.Run("concatenates text parts", func(t *testing.T) {
		t.Parallel()

		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{
					Content: &genai.Content{
						Parts: []*genai.Part{{Text: "{\"summary\": "}, {Text: "\"x\"}"}},
					},
				},
			},
		}

		text, err := responseText(resp)
		require.NoError(t, err)
		assert.Equal(t, `{"summary": "x"}`, text)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()

		_, err := responseText(nil)
		assert.ErrorIs(t, err, extraction.ErrServiceFailure)
	})

	t.Run("empty candidate content", func(t *testing.T) {
		t.Parallel()

		_, err := responseText(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{}},
		})
		assert.ErrorIs(t, err, extraction.ErrServiceFailure)
	})
}

func TestNewGeminiExtractor_Validation(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil logger", func(t *testing.T) {
		t.Parallel()

		_, err := NewGeminiExtractor(context.Background(), nil, config.LLMConfig{
			GeminiAPIKey: "key",
			ModelName:    "gemini-2.0-flash",
		})
		assert.Error(t, err)
	})

	t.Run("rejects missing API key", func(t *testing.T) {
		t.Parallel()

		_, err := NewGeminiExtractor(context.Background(), slog.Default(), config.LLMConfig{
			ModelName: "gemini-2.0-flash",
		})
		assert.ErrorIs(t, err, extraction.ErrInvalidConfig)
	})

	t.Run("rejects missing model name", func(t *testing.T) {
		t.Parallel()

		_, err := NewGeminiExtractor(context.Background(), slog.Default(), config.LLMConfig{
			GeminiAPIKey: "key",
		})
		assert.ErrorIs(t, err, extraction.ErrInvalidConfig)
	})
}
