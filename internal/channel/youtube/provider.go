// Package youtube implements the channel collaborators against the YouTube
// Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/DukeRupert/streamtosite/internal/channel"
	"github.com/DukeRupert/streamtosite/internal/domain"
)

var channelParts = []string{"snippet", "statistics", "brandingSettings", "topicDetails"}

// Provider looks up YouTube channels and checks verification codes in the
// channel description.
type Provider struct {
	svc    *yt.Service
	logger *slog.Logger
}

// New creates a provider authenticated with an API key. Extra options are
// appended, which lets tests point the client at a local server.
func New(ctx context.Context, apiKey string, logger *slog.Logger, opts ...option.ClientOption) (*Provider, error) {
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("youtube: API key is required")
	}
	all := make([]option.ClientOption, 0, len(opts)+1)
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)

	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}
	return &Provider{svc: svc, logger: logger}, nil
}

// FetchChannel resolves a channel, handle, user or video URL to channel metadata.
func (p *Provider) FetchChannel(ctx context.Context, url string) (*domain.ChannelInfo, error) {
	ref, ok := channel.ParseRef(url)
	if !ok || ref.Platform != domain.PlatformYouTube {
		if channel.DetectPlatform(url) == domain.PlatformYouTube {
			return nil, &channel.Error{Op: "fetch", URL: url, Err: channel.ErrChannelNotFound}
		}
		return nil, &channel.Error{Op: "fetch", URL: url, Err: channel.ErrUnsupportedPlatform}
	}

	call := p.svc.Channels.List(channelParts).Context(ctx)
	switch ref.Kind {
	case channel.RefID:
		call = call.Id(ref.Value)
	case channel.RefUsername:
		call = call.ForUsername(ref.Value)
	case channel.RefHandle, channel.RefCustom:
		call = call.ForHandle("@" + ref.Value)
	case channel.RefVideo:
		id, err := p.videoChannel(ctx, ref.Value)
		if err != nil {
			return nil, &channel.Error{Op: "fetch", URL: url, Err: err}
		}
		call = call.Id(id)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, &channel.Error{Op: "fetch", URL: url, Err: mapError(err)}
	}
	if len(resp.Items) == 0 {
		return nil, &channel.Error{Op: "fetch", URL: url, Err: channel.ErrChannelNotFound}
	}

	info := toChannelInfo(resp.Items[0])
	p.logger.Debug("youtube channel fetched", "channel_id", info.ID, "handle", info.Handle)
	return &info, nil
}

// VerifyOwnership checks that code appears in the channel's description.
func (p *Provider) VerifyOwnership(ctx context.Context, channelID, code string) error {
	resp, err := p.svc.Channels.List([]string{"snippet"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		return &channel.Error{Op: "verify", Err: mapError(err)}
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return &channel.Error{Op: "verify", Err: channel.ErrChannelNotFound}
	}
	if !strings.Contains(strings.ToUpper(resp.Items[0].Snippet.Description), strings.ToUpper(code)) {
		return channel.ErrCodeNotFound
	}
	return nil
}

func (p *Provider) videoChannel(ctx context.Context, videoID string) (string, error) {
	resp, err := p.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", channel.ErrChannelNotFound
	}
	return resp.Items[0].Snippet.ChannelId, nil
}

func toChannelInfo(c *yt.Channel) domain.ChannelInfo {
	info := domain.ChannelInfo{ID: c.Id}
	if s := c.Snippet; s != nil {
		info.Name = s.Title
		info.Handle = s.CustomUrl
		info.Description = s.Description
		if t := s.Thumbnails; t != nil {
			switch {
			case t.High != nil:
				info.AvatarURL = t.High.Url
			case t.Medium != nil:
				info.AvatarURL = t.Medium.Url
			case t.Default != nil:
				info.AvatarURL = t.Default.Url
			}
		}
	}
	if st := c.Statistics; st != nil && !st.HiddenSubscriberCount {
		info.Subscribers = int64(st.SubscriberCount)
	}
	if td := c.TopicDetails; td != nil && len(td.TopicCategories) > 0 {
		info.Category = strings.ReplaceAll(path.Base(td.TopicCategories[0]), "_", " ")
	}
	if b := c.BrandingSettings; b != nil && b.Channel != nil {
		info.Tags = splitKeywords(b.Channel.Keywords)
	}
	return info
}

// splitKeywords parses YouTube's keyword string, where multi-word keywords
// are double-quoted.
func splitKeywords(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quote = !quote
			if !quote {
				flush()
			}
		case r == ' ' && !quote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", channel.ErrUnavailable, err)
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return channel.ErrChannelNotFound
	case gerr.Code == http.StatusTooManyRequests, gerr.Code == http.StatusForbidden, gerr.Code >= 500:
		return fmt.Errorf("%w: %s", channel.ErrUnavailable, gerr.Message)
	}
	return err
}
