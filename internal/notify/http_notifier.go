package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/config"
	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/redact"
	"github.com/studybuddy/analysis-api/internal/service/auth"
)

// HTTPNotifier posts outcomes to the callback endpoint with a bearer
// service token, retrying failed deliveries a fixed number of times.
type HTTPNotifier struct {
	client      *http.Client
	callbackURL string
	attempts    int
	timeout     time.Duration
	source      *tokenSource
	logger      *slog.Logger
}

// NewHTTPNotifier creates an HTTPNotifier from the notify
// configuration. The trusted service name becomes the subject of every
// minted token; the callback only accepts that subject.
func NewHTTPNotifier(
	cfg config.NotifyConfig,
	tokens auth.TokenService,
	trustedService string,
	logger *slog.Logger,
) (*HTTPNotifier, error) {
	if cfg.CallbackURL == "" {
		return nil, errors.New("callback URL cannot be empty")
	}
	if tokens == nil {
		return nil, errors.New("token service cannot be nil")
	}
	if trustedService == "" {
		return nil, errors.New("trusted service name cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPNotifier{
		client:      &http.Client{Timeout: timeout},
		callbackURL: cfg.CallbackURL,
		attempts:    attempts,
		timeout:     timeout,
		source: newTokenSource(
			tokens,
			trustedService,
			time.Duration(cfg.RefreshLeewaySeconds)*time.Second,
		),
		logger: logger.With("component", "notifier"),
	}, nil
}

// callbackBody is the wire shape the callback endpoint decodes.
// Usage rides inside the result half, not as a sibling of it.
type callbackBody struct {
	Result *callbackResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type callbackResult struct {
	Sections map[string]string `json:"sections"`
	Usage    *domain.Usage     `json:"usage,omitempty"`
}

// Notify implements Notifier. Each attempt gets its own timeout; a
// rejected token is invalidated so the next attempt mints a fresh one.
func (n *HTTPNotifier) Notify(ctx context.Context, jobID uuid.UUID, outcome *domain.Outcome) error {
	payload := callbackBody{Error: outcome.Error}
	if outcome.Result != nil {
		payload.Result = &callbackResult{
			Sections: outcome.Result.Sections,
			Usage:    outcome.Usage,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	url := fmt.Sprintf("%s/%s", n.callbackURL, jobID)
	log := n.logger.With("job_id", jobID)

	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		lastErr = n.deliver(ctx, url, body)
		if lastErr == nil {
			log.Info("outcome delivered", "attempt", attempt)
			return nil
		}

		log.Warn("delivery attempt failed",
			"attempt", attempt,
			"max_attempts", n.attempts,
			"error", redact.Error(lastErr))

		if ctx.Err() != nil {
			return fmt.Errorf("delivery cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("failed to deliver outcome after %d attempts: %w", n.attempts, lastErr)
}

// deliver makes one POST attempt.
func (n *HTTPNotifier) deliver(ctx context.Context, url string, body []byte) error {
	token, err := n.source.Token(ctx)
	if err != nil {
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		n.source.Invalidate()
		return fmt.Errorf("callback rejected token: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
}
