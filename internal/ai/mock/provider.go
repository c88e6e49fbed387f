package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/streamtosite/internal/ai"
)

// Provider is a mock AI co-pilot for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	DraftResponse *ai.Draft
	DraftError    error

	// Call tracking for testing
	DraftCalls int
	LastParams ai.DraftParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// DraftPost returns a canned draft built from the request.
func (p *Provider) DraftPost(ctx context.Context, params ai.DraftParams) (*ai.Draft, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DraftCalls++
	p.LastParams = params

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.DraftError != nil {
		return nil, p.DraftError
	}
	if err := params.Validate(); err != nil {
		return nil, ai.WrapError("draft post", err)
	}
	if p.DraftResponse != nil {
		d := *p.DraftResponse
		return &d, nil
	}

	topic := params.Topic
	if topic == "" {
		topic = "my latest video"
	}
	channel := params.ChannelName
	if channel == "" {
		channel = "the channel"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "## Why %s\n\n", topic)
	fmt.Fprintf(&body, "Welcome back to %s. This post goes deeper into %s than the video had time for.\n\n", channel, topic)
	if params.VideoURL != "" {
		fmt.Fprintf(&body, "Watch the full video here: %s\n\n", params.VideoURL)
	}
	body.WriteString("## Key takeaways\n\n- What worked\n- What didn't\n- What I'd do next time\n")

	p.logger.Debug("mock draft generated", "topic", topic)
	return &ai.Draft{
		Title:   strings.ToUpper(topic[:1]) + topic[1:],
		Excerpt: fmt.Sprintf("A closer look at %s from %s.", topic, channel),
		Content: body.String(),
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  420,
			OutputTokens: 610,
			Duration:     50 * time.Millisecond,
		},
	}, nil
}

// Calls returns how many drafts were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DraftCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DraftCalls = 0
	p.LastParams = ai.DraftParams{}
	p.DraftResponse = nil
	p.DraftError = nil
}
