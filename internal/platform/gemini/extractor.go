package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/meetflow/meetflow-api/internal/config"
	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/extraction"
)

// generateFunc makes a single model call and returns the raw response.
// Factored out of the extractor so the retry loop can be tested without a
// live API client.
type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// GeminiExtractor implements the extraction.Extractor interface using
// Google's Gemini API to extract structured meeting data from email text.
type GeminiExtractor struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// generate performs one model call. Defaults to the real API client.
	generate generateFunc

	// normalizer turns the model's loose JSON into total MeetingData.
	normalizer *extraction.Normalizer
}

// Ensure GeminiExtractor implements extraction.Extractor interface
var _ extraction.Extractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates a new GeminiExtractor with the provided
// configuration and a real Gemini API client.
func NewGeminiExtractor(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiExtractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", extraction.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", extraction.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("extraction").Parse(extractionPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			extraction.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			extraction.ErrInvalidConfig, err)
	}

	extractor := &GeminiExtractor{
		logger:         logger.With(slog.String("component", "gemini_extractor")),
		config:         cfg,
		promptTemplate: promptTemplate,
		normalizer:     extraction.NewNormalizer(logger),
	}
	extractor.generate = func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(
			ctx,
			cfg.ModelName,
			genai.Text(prompt),
			&genai.GenerateContentConfig{
				Temperature:     genai.Ptr(float32(cfg.Temperature)),
				MaxOutputTokens: int32(cfg.MaxTokens),
			},
		)
	}

	return extractor, nil
}

// ExtractMeetingData implements extraction.Extractor.ExtractMeetingData
// It renders the prompt, calls the model with retries, parses whatever text
// comes back and normalizes it into total MeetingData.
func (g *GeminiExtractor) ExtractMeetingData(
	ctx context.Context,
	subject, body string,
) (*domain.MeetingData, error) {
	prompt, err := g.buildPrompt(subject, body)
	if err != nil {
		return nil, err
	}

	responseText, err := g.callModelWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := extraction.ParseResponse(responseText)
	if err != nil {
		g.logger.ErrorContext(ctx, "model response is not parseable",
			slog.String("error", err.Error()),
			slog.Int("response_length", len(responseText)))
		return nil, err
	}

	return g.normalizer.Normalize(raw), nil
}

// CheckConnection implements extraction.Extractor.CheckConnection with a
// minimal completion: any well-formed text response proves the model is
// reachable and generating. No retries, a health probe should report the
// current state, not mask it.
func (g *GeminiExtractor) CheckConnection(ctx context.Context) error {
	resp, err := g.generate(ctx, connectionCheckPrompt)
	if err != nil {
		return fmt.Errorf("%w: %v", extraction.ErrServiceFailure, err)
	}

	if _, err := responseText(resp); err != nil {
		return err
	}

	return nil
}

// buildPrompt renders the extraction prompt for the given email.
func (g *GeminiExtractor) buildPrompt(subject, body string) (string, error) {
	if body == "" {
		return "", domain.ErrEmptyEmailBody
	}

	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, promptData{Subject: subject, Body: body}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}

// callModelWithRetry calls the model with exponential backoff and jitter.
// API-level failures are treated as transient and retried up to
// config.MaxRetries times; a blocked or empty response is permanent and
// returned immediately.
func (g *GeminiExtractor) callModelWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	baseDelaySeconds := g.config.RetryDelaySeconds
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		g.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making extraction API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := g.generate(ctx, prompt)
		if err != nil {
			// API-level errors (network, rate limits) are worth retrying.
			lastErr = fmt.Errorf("%w: %v", extraction.ErrServiceFailure, err)
			g.logger.ErrorContext(ctx, "extraction API call failed",
				"attempt", attemptNum,
				"error", err)
		} else {
			text, respErr := responseText(resp)
			if respErr == nil {
				g.logger.InfoContext(ctx, "extraction API call succeeded",
					"attempt", attemptNum,
					"response_length", len(text))
				return text, nil
			}

			// A response the model refused or left empty will not get
			// better on retry.
			g.logger.WarnContext(ctx, "permanent extraction failure, not retrying",
				"attempt", attemptNum,
				"error", respErr)
			return "", respErr
		}

		if attempt >= maxRetries {
			break
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.logger.WarnContext(ctx, "extraction cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return "", fmt.Errorf("%w: %v", extraction.ErrServiceFailure, ctx.Err())
		}
	}

	g.logger.WarnContext(ctx, "maximum retry attempts reached", "max_retries", maxRetries)
	return "", fmt.Errorf("exceeded maximum retry attempts (%d): %w", maxRetries, lastErr)
}

// responseText extracts the concatenated text parts from a model response,
// mapping refusals and empty responses to the extraction error taxonomy.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", extraction.ErrServiceFailure)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason safety", extraction.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", extraction.ErrServiceFailure)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", fmt.Errorf("%w: response contains no text parts", extraction.ErrServiceFailure)
	}

	return text, nil
}
