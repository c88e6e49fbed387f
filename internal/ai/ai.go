package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Copilot drafts blog posts from a creator's channel context.
type Copilot interface {
	// DraftPost writes a post draft about a video or topic.
	DraftPost(ctx context.Context, params DraftParams) (*Draft, error)
}

// DraftParams describes what the post should cover.
type DraftParams struct {
	ChannelName string   // Channel the site is built around
	Category    string   // Channel category, e.g. "Science & Technology"
	Tags        []string // Channel keywords
	Topic       string   // What the post is about
	VideoURL    string   // Optional source video
	Tone        Tone     // Writing style
}

// Validate checks the params carry enough to write about.
func (p DraftParams) Validate() error {
	if strings.TrimSpace(p.Topic) == "" && strings.TrimSpace(p.VideoURL) == "" {
		return fmt.Errorf("%w: topic or video URL is required", EAIInvalidRequest)
	}
	if p.Tone != "" && !p.Tone.Valid() {
		return fmt.Errorf("%w: unknown tone %q", EAIInvalidRequest, p.Tone)
	}
	return nil
}

// Draft is a generated post.
type Draft struct {
	Title   string    // Post title
	Excerpt string    // One or two sentence summary
	Content string    // Markdown body
	Usage   UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// Tone selects the voice of a draft.
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneEnthusiastic Tone = "enthusiastic"
)

// Valid checks if the tone is known
func (t Tone) Valid() bool {
	switch t {
	case ToneCasual, ToneProfessional, ToneEnthusiastic:
		return true
	default:
		return false
	}
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidRequest indicates the draft request is incomplete
	EAIInvalidRequest = errors.New("invalid draft request")

	// EAIContentPolicy indicates the request was refused by content policy
	EAIContentPolicy = errors.New("request violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
