package channel

import (
	"net/url"
	"strings"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

var platformHosts = map[string]domain.Platform{
	"youtube.com":  domain.PlatformYouTube,
	"youtu.be":     domain.PlatformYouTube,
	"tiktok.com":   domain.PlatformTikTok,
	"facebook.com": domain.PlatformFacebook,
	"fb.com":       domain.PlatformFacebook,
	"fb.watch":     domain.PlatformFacebook,
}

// DetectPlatform returns the platform a URL belongs to. Anything that is not
// a URL on a known platform is domain.PlatformUnknown.
func DetectPlatform(raw string) domain.Platform {
	u, ok := parse(raw)
	if !ok {
		return domain.PlatformUnknown
	}
	return hostPlatform(u.Hostname())
}

func hostPlatform(host string) domain.Platform {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for {
		if p, ok := platformHosts[host]; ok {
			return p
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return domain.PlatformUnknown
		}
		host = host[i+1:]
	}
}

func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return nil, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// RefKind says which part of a channel URL identifies the channel.
type RefKind string

const (
	RefHandle   RefKind = "handle"
	RefID       RefKind = "id"
	RefUsername RefKind = "username"
	RefCustom   RefKind = "custom"
	RefVideo    RefKind = "video"
)

// Ref is a parsed channel reference.
type Ref struct {
	Platform domain.Platform
	Kind     RefKind
	Value    string
}

// ParseRef extracts the channel identifier from a channel or video URL.
func ParseRef(raw string) (Ref, bool) {
	u, ok := parse(raw)
	if !ok {
		return Ref{}, false
	}
	p := hostPlatform(u.Hostname())
	if p == domain.PlatformUnknown {
		return Ref{}, false
	}

	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	host := strings.ToLower(u.Hostname())

	if p == domain.PlatformYouTube && strings.HasSuffix(host, "youtu.be") {
		if len(segs) == 0 {
			return Ref{}, false
		}
		return Ref{Platform: p, Kind: RefVideo, Value: segs[0]}, true
	}
	if p == domain.PlatformYouTube && len(segs) > 0 && segs[0] == "watch" {
		if v := u.Query().Get("v"); v != "" {
			return Ref{Platform: p, Kind: RefVideo, Value: v}, true
		}
		return Ref{}, false
	}
	if len(segs) == 0 {
		return Ref{}, false
	}

	first := segs[0]
	switch {
	case strings.HasPrefix(first, "@") && len(first) > 1:
		return Ref{Platform: p, Kind: RefHandle, Value: first[1:]}, true
	case len(segs) > 1 && first == "channel":
		return Ref{Platform: p, Kind: RefID, Value: segs[1]}, true
	case len(segs) > 1 && first == "user":
		return Ref{Platform: p, Kind: RefUsername, Value: segs[1]}, true
	case len(segs) > 1 && first == "c":
		return Ref{Platform: p, Kind: RefCustom, Value: segs[1]}, true
	case p == domain.PlatformFacebook && first != "watch" && first != "share":
		return Ref{Platform: p, Kind: RefCustom, Value: first}, true
	}
	return Ref{}, false
}
