package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform tags the video platform a source comes from.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformTikTok   Platform = "tiktok"
	PlatformFacebook Platform = "facebook"
	PlatformUnknown  Platform = "unknown"
)

// IsSupported reports whether channels on this platform can be imported.
func (p Platform) IsSupported() bool {
	switch p {
	case PlatformYouTube, PlatformTikTok, PlatformFacebook:
		return true
	}
	return false
}

// VerificationMethod is how a site owner proved they control a channel.
type VerificationMethod string

const (
	VerificationBio         VerificationMethod = "bio"
	VerificationDescription VerificationMethod = "description"
	VerificationOAuth       VerificationMethod = "oauth"
)

// IsValid reports whether the method is known.
func (m VerificationMethod) IsValid() bool {
	switch m {
	case VerificationBio, VerificationDescription, VerificationOAuth:
		return true
	}
	return false
}

// ChannelInfo is the channel metadata copied onto a source when it is added.
type ChannelInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Handle      string   `json:"handle"`
	AvatarURL   string   `json:"avatarUrl"`
	Subscribers int64    `json:"subscribers"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// Source binds a site to one external channel.
type Source struct {
	ID        uuid.UUID   `json:"id"`
	Platform  Platform    `json:"platform"`
	URL       string      `json:"url"`
	Channel   ChannelInfo `json:"channel"`
	IsPrimary bool        `json:"isPrimary"`
	AddedAt   time.Time   `json:"addedAt"`
	SyncedAt  *time.Time  `json:"syncedAt,omitempty"`
}

// SiteStats are aggregate counters shown on the dashboard.
type SiteStats struct {
	PostCount int64 `json:"postCount"`
	Views     int64 `json:"views"`
	Revenue   int64 `json:"revenue"` // cents
}

// Site is a generated micro-site fed by one or more sources.
type Site struct {
	ID                 uuid.UUID          `json:"id"`
	OwnerID            uuid.UUID          `json:"ownerId"`
	Subdomain          string             `json:"subdomain"`
	Theme              ThemeID            `json:"theme"`
	CustomDomain       string             `json:"customDomain,omitempty"`
	LogoURL            string             `json:"logoUrl,omitempty"`
	IsVerified         bool               `json:"isVerified"`
	VerificationCode   string             `json:"verificationCode"`
	VerificationMethod VerificationMethod `json:"verificationMethod,omitempty"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty"`
	BrandingEnabled    bool               `json:"brandingEnabled"`
	Sources            []Source           `json:"sources"`
	Stats              SiteStats          `json:"stats"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// PrimarySource returns the site's primary source, or nil if it has none.
func (s *Site) PrimarySource() *Source {
	for i := range s.Sources {
		if s.Sources[i].IsPrimary {
			return &s.Sources[i]
		}
	}
	return nil
}

// HasSource reports whether a source with the given URL is already attached.
func (s *Site) HasSource(url string) bool {
	for _, src := range s.Sources {
		if strings.EqualFold(src.URL, url) {
			return true
		}
	}
	return false
}

// DisplayName returns the primary channel's name, falling back to the subdomain.
func (s *Site) DisplayName() string {
	if p := s.PrimarySource(); p != nil && p.Channel.Name != "" {
		return p.Channel.Name
	}
	return s.Subdomain
}

// Hostname returns the public host the site is served on.
func (s *Site) Hostname(baseDomain string) string {
	if s.CustomDomain != "" {
		return s.CustomDomain
	}
	return s.Subdomain + "." + baseDomain
}
