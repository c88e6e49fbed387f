package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/streamtosite/internal/ai"
	"github.com/DukeRupert/streamtosite/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultMaxTokens bounds the length of a generated draft.
	DefaultMaxTokens = 4096
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // defaults to APIBaseURL
	MaxTokens      int
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Copilot using Anthropic's Messages API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// DraftPost asks Claude for a blog post draft.
func (p *Provider) DraftPost(ctx context.Context, params ai.DraftParams) (*ai.Draft, error) {
	startTime := time.Now()

	if err := params.Validate(); err != nil {
		return nil, ai.WrapError("draft post", err)
	}

	body, err := json.Marshal(apiRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.MaxTokens,
		Messages: []apiMessage{
			{
				Role:    "user",
				Content: []apiContent{{Type: "text", Text: buildDraftPrompt(params)}},
			},
		},
	})
	if err != nil {
		return nil, ai.WrapError("build request", fmt.Errorf("marshal request: %w", err))
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("execute request", err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(resp.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(resp.Usage.OutputTokens))

	draft, err := parseDraftResponse(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	draft.Usage = ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Duration:     time.Since(startTime),
	}
	p.logger.Info("draft generated",
		"model", draft.Usage.Model,
		"input_tokens", draft.Usage.InputTokens,
		"output_tokens", draft.Usage.OutputTokens,
		"duration_ms", draft.Usage.Duration.Milliseconds(),
	)
	return draft, nil
}

// executeWithRetry sends body with exponential backoff on transient errors.
// A fresh request is built for every attempt.
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}

		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential: base * 2^(attempt-1)
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(errResp.Error.Message), "policy") {
			return ai.EAIContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EAIInvalidRequest, errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseDraftResponse extracts the JSON draft from the first text block.
// Models sometimes wrap JSON in a Markdown code fence; that is stripped.
func parseDraftResponse(resp *apiResponse) (*ai.Draft, error) {
	var text string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text = content.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var output draftOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &output); err != nil {
		return nil, fmt.Errorf("parse draft output: %w", err)
	}
	if strings.TrimSpace(output.Title) == "" || strings.TrimSpace(output.Content) == "" {
		return nil, fmt.Errorf("draft is missing a title or content")
	}

	return &ai.Draft{
		Title:   strings.TrimSpace(output.Title),
		Excerpt: strings.TrimSpace(output.Excerpt),
		Content: output.Content,
	}, nil
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// draftOutput is the JSON object the prompt asks Claude to return.
type draftOutput struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
}
