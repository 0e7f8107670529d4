package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/studybuddy/analysis-api/internal/config"
	"github.com/studybuddy/analysis-api/internal/domain"
)

// sectionPrompts maps each analysis section to the instruction sent to
// the model ahead of the document text.
var sectionPrompts = map[string]string{
	domain.SectionExplanation: "Explain the key concepts in the following study material in plain language, " +
		"as if teaching a student encountering them for the first time.",
	domain.SectionEvaluation: "Evaluate the following study material: identify its strengths, gaps, and any " +
		"claims that deserve scrutiny.",
	domain.SectionFlashcards: "Produce a set of question-and-answer flashcards covering the most important " +
		"points of the following study material. One card per line, question and answer separated by ' :: '.",
	domain.SectionSummary: "Summarize the following study material in a few concise paragraphs.",
}

// GeminiAnalyzer implements Analyzer using Google's Gemini API. Each
// section is generated by an independent model call; token usage is
// summed across sections.
type GeminiAnalyzer struct {
	logger *slog.Logger
	config config.EngineConfig
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates a GeminiAnalyzer from the engine
// configuration.
func NewGeminiAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.EngineConfig) (*GeminiAnalyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &GeminiAnalyzer{
		logger: logger.With("component", "gemini_analyzer"),
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Analyze implements Analyzer.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, documentPath string) (*domain.AnalysisResult, *domain.Usage, error) {
	document, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read document: %w", err)
	}
	text := strings.TrimSpace(string(document))
	if text == "" {
		return nil, nil, fmt.Errorf("%w: document is empty", ErrInvalidResponse)
	}

	result := &domain.AnalysisResult{Sections: make(map[string]string, len(domain.AnalysisSections))}
	usage := &domain.Usage{}

	for _, section := range domain.AnalysisSections {
		prompt := sectionPrompts[section] + "\n\n" + text

		sectionText, tokens, err := g.generateWithRetry(ctx, section, prompt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate %s: %w", section, err)
		}

		result.Sections[section] = sectionText
		usage.TokenCount += tokens
	}

	return result, usage, nil
}

// generateWithRetry calls the model with exponential backoff and
// jitter. Permanent errors are returned immediately; transient ones are
// retried up to the configured maximum.
func (g *GeminiAnalyzer) generateWithRetry(ctx context.Context, section, prompt string) (string, int, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		g.logger.InfoContext(ctx, "calling model",
			"section", section,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		text, tokens, err := g.generateOnce(ctx, prompt)
		if err == nil {
			return text, tokens, nil
		}
		lastErr = err

		if Permanent(err) {
			g.logger.WarnContext(ctx, "permanent model error, not retrying",
				"section", section,
				"error", err)
			return "", 0, err
		}

		g.logger.ErrorContext(ctx, "model call failed",
			"section", section,
			"attempt", attempt+1,
			"error", err)

		if attempt >= maxRetries {
			break
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoff := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}

	return "", 0, fmt.Errorf("%w: exceeded %d attempts: %v", ErrTransientFailure, maxRetries+1, lastErr)
}

// generateOnce makes a single model call and classifies its failure
// modes.
func (g *GeminiAnalyzer) generateOnce(ctx context.Context, prompt string) (string, int, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", 0, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", 0, ErrContentBlocked
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("%w: empty response text", ErrInvalidResponse)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return text, tokens, nil
}
