// Package mock provides a deterministic channel provider for development
// and tests.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/streamtosite/internal/channel"
	"github.com/DukeRupert/streamtosite/internal/domain"
)

// Channels is the canned lookup table keyed by lower-cased handle.
var Channels = map[string]domain.ChannelInfo{
	"mkbhd": {
		ID:          "UCBJycsmduvYEL83R_U4JriQ",
		Name:        "Marques Brownlee",
		Handle:      "@mkbhd",
		AvatarURL:   "https://yt3.ggpht.com/mkbhd=s240",
		Subscribers: 19_600_000,
		Description: "MKBHD: Quality Tech Videos | YouTuber | Geek | Consumer Electronics | Tech Head | Internet Personality!",
		Category:    "Technology",
		Tags:        []string{"tech", "reviews", "smartphones"},
	},
	"veritasium": {
		ID:          "UCHnyfMqiRRG1u-2MsSQLbXA",
		Name:        "Veritasium",
		Handle:      "@veritasium",
		AvatarURL:   "https://yt3.ggpht.com/veritasium=s240",
		Subscribers: 16_800_000,
		Description: "An element of truth - videos about science, education, and anything else I find interesting.",
		Category:    "Education",
		Tags:        []string{"science", "physics", "education"},
	},
	"joshuaweissman": {
		ID:          "UChBEbMKI1eCcejTtmI32UEw",
		Name:        "Joshua Weissman",
		Handle:      "@joshuaweissman",
		AvatarURL:   "https://yt3.ggpht.com/joshuaweissman=s240",
		Subscribers: 9_900_000,
		Description: "Cooking, but make it unapologetic.",
		Category:    "Food",
		Tags:        []string{"cooking", "recipes", "food"},
	},
	"khaby.lame": {
		ID:          "tt-khaby-lame",
		Name:        "Khabane Lame",
		Handle:      "@khaby.lame",
		AvatarURL:   "https://p16-sign.tiktokcdn.com/khaby.jpeg",
		Subscribers: 162_000_000,
		Description: "If u wanna laugh u r in the right place",
		Category:    "Comedy",
		Tags:        []string{"comedy", "life hacks"},
	},
	"natgeo": {
		ID:          "fb-natgeo",
		Name:        "National Geographic",
		Handle:      "NatGeo",
		AvatarURL:   "https://graph.facebook.com/natgeo/picture",
		Subscribers: 55_000_000,
		Description: "Inspiring people to care about the planet since 1888.",
		Category:    "Science",
		Tags:        []string{"nature", "travel", "science"},
	},
}

var categories = []string{"Technology", "Education", "Gaming", "Food", "Travel", "Fitness", "Music"}

// Provider is a mock channel and verification provider. Lookups for handles
// not in Channels synthesize stable metadata from the handle.
type Provider struct {
	logger *slog.Logger

	// Delay simulates network latency. It honours context cancellation.
	Delay time.Duration

	// AlwaysVerify makes every ownership check succeed.
	AlwaysVerify bool

	// Configurable failures for testing
	FetchError  error
	VerifyError error

	mu          sync.Mutex
	verified    map[string]bool
	fetchCalls  int
	verifyCalls int
}

// New creates a new mock channel provider.
func New(logger *slog.Logger, delay time.Duration) *Provider {
	return &Provider{
		logger:   logger,
		Delay:    delay,
		verified: make(map[string]bool),
	}
}

// PublishCode marks code as present on the channel, so the next
// VerifyOwnership for that pair succeeds.
func (p *Provider) PublishCode(channelID, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified[channelID+"|"+code] = true
}

// FetchChannel returns canned metadata for the channel behind url.
func (p *Provider) FetchChannel(ctx context.Context, url string) (*domain.ChannelInfo, error) {
	p.mu.Lock()
	p.fetchCalls++
	fetchErr := p.FetchError
	p.mu.Unlock()

	if err := p.wait(ctx); err != nil {
		return nil, &channel.Error{Op: "fetch", URL: url, Err: err}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	ref, ok := channel.ParseRef(url)
	if !ok {
		if channel.DetectPlatform(url) == domain.PlatformUnknown {
			return nil, &channel.Error{Op: "fetch", URL: url, Err: channel.ErrUnsupportedPlatform}
		}
		return nil, &channel.Error{Op: "fetch", URL: url, Err: channel.ErrChannelNotFound}
	}

	if info, ok := Channels[strings.ToLower(ref.Value)]; ok {
		info.Tags = append([]string(nil), info.Tags...)
		return &info, nil
	}

	info := synthesize(ref)
	if p.logger != nil {
		p.logger.Debug("mock channel synthesized", "url", url, "handle", info.Handle)
	}
	return &info, nil
}

// VerifyOwnership succeeds when the code was published for the channel or
// AlwaysVerify is set.
func (p *Provider) VerifyOwnership(ctx context.Context, channelID, code string) error {
	p.mu.Lock()
	p.verifyCalls++
	verifyErr := p.VerifyError
	ok := p.AlwaysVerify || p.verified[channelID+"|"+code]
	p.mu.Unlock()

	if err := p.wait(ctx); err != nil {
		return &channel.Error{Op: "verify", Err: err}
	}
	if verifyErr != nil {
		return verifyErr
	}
	if !ok {
		return channel.ErrCodeNotFound
	}
	return nil
}

// Calls returns the number of fetch and verify calls made so far.
func (p *Provider) Calls() (fetch, verify int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchCalls, p.verifyCalls
}

// Reset clears call counters, published codes and configured failures.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls = 0
	p.verifyCalls = 0
	p.FetchError = nil
	p.VerifyError = nil
	p.verified = make(map[string]bool)
}

func (p *Provider) wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func synthesize(ref channel.Ref) domain.ChannelInfo {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(ref.Value)))
	sum := h.Sum32()

	name := ref.Value
	if ref.Kind == channel.RefVideo {
		name = "Channel " + ref.Value
	}
	handle := ref.Value
	if ref.Kind == channel.RefHandle {
		handle = "@" + ref.Value
	}

	return domain.ChannelInfo{
		ID:          fmt.Sprintf("%s-%08x", ref.Platform, sum),
		Name:        name,
		Handle:      handle,
		AvatarURL:   fmt.Sprintf("https://avatars.streamtosite.dev/%08x.png", sum),
		Subscribers: int64(1_000 + sum%500_000),
		Description: fmt.Sprintf("Videos from %s.", name),
		Category:    categories[sum%uint32(len(categories))],
		Tags:        []string{strings.ToLower(string(ref.Platform))},
	}
}
