package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

// SourceParams describes a channel being attached to a site.
type SourceParams struct {
	URL      string
	Platform domain.Platform
	Channel  domain.ChannelInfo
}

// CreateSite adds a site with one primary source. The subdomain is derived
// from the channel name and the branding flag from the current plan.
func (s *Store) CreateSite(ctx context.Context, params SourceParams) (*domain.Site, error) {
	planID := s.Plan(ctx)
	now := s.timestamp()

	var created domain.Site
	err := s.update(ctx, func(st *domain.State) error {
		base := Slugify(params.Channel.Name)
		if base == "site" && params.Channel.Handle != "" {
			base = Slugify(strings.TrimPrefix(params.Channel.Handle, "@"))
		}
		sub := uniqueSubdomain(base, func(c string) bool {
			for _, site := range st.Sites {
				if site.Subdomain == c {
					return true
				}
			}
			return false
		})

		created = domain.Site{
			ID:               uuid.New(),
			OwnerID:          st.User.ID,
			Subdomain:        sub,
			Theme:            domain.DefaultTheme,
			VerificationCode: newVerificationCode(),
			BrandingEnabled:  plan.Get(planID).BrandingEnabled(),
			Sources:          []domain.Source{newSource(params, true, now)},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		st.Sites = append(st.Sites, created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("site created", "site_id", created.ID, "subdomain", created.Subdomain, "plan", planID)
	out := cloneSite(created)
	return &out, nil
}

// AddSourceToSite appends a non-primary source. It returns nil, nil if the
// site does not exist.
func (s *Store) AddSourceToSite(ctx context.Context, siteID uuid.UUID, params SourceParams) (*domain.Site, error) {
	now := s.timestamp()
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		site.Sources = append(site.Sources, newSource(params, len(site.Sources) == 0, now))
		site.UpdatedAt = now
	})
}

// DeleteSite removes the site. Deleting a missing site is a no-op. Posts
// belonging to the site are kept.
func (s *Store) DeleteSite(ctx context.Context, siteID uuid.UUID) error {
	if _, ok := s.site(siteID); !ok {
		return nil
	}
	err := s.update(ctx, func(st *domain.State) error {
		kept := st.Sites[:0]
		for _, site := range st.Sites {
			if site.ID != siteID {
				kept = append(kept, site)
			}
		}
		st.Sites = kept
		return nil
	})
	if err == nil {
		s.logger.Info("site deleted", "site_id", siteID)
	}
	return err
}

// VerifySite marks the site verified. It is idempotent: the first
// verification time and method are kept. Missing sites are a no-op.
func (s *Store) VerifySite(ctx context.Context, siteID uuid.UUID, method domain.VerificationMethod) error {
	if site, ok := s.site(siteID); !ok || site.IsVerified {
		return nil
	}
	now := s.timestamp()
	_, err := s.updateSite(ctx, siteID, func(site *domain.Site) {
		if site.IsVerified {
			return
		}
		site.IsVerified = true
		site.VerificationMethod = method
		site.VerifiedAt = &now
		site.UpdatedAt = now
	})
	if err == nil {
		s.logger.Info("site verified", "site_id", siteID, "method", method)
	}
	return err
}

// UpdateSiteTheme sets the theme. Returns nil, nil for a missing site.
func (s *Store) UpdateSiteTheme(ctx context.Context, siteID uuid.UUID, theme domain.ThemeID) (*domain.Site, error) {
	now := s.timestamp()
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		site.Theme = theme
		site.UpdatedAt = now
	})
}

// SetCustomDomain sets or, with an empty host, clears the custom domain.
func (s *Store) SetCustomDomain(ctx context.Context, siteID uuid.UUID, host string) (*domain.Site, error) {
	now := s.timestamp()
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		site.CustomDomain = host
		site.UpdatedAt = now
	})
}

// SetLogoURL records the URL of the site's uploaded logo.
func (s *Store) SetLogoURL(ctx context.Context, siteID uuid.UUID, url string) (*domain.Site, error) {
	now := s.timestamp()
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		site.LogoURL = url
		site.UpdatedAt = now
	})
}

// UpdateSourceChannel refreshes the denormalized channel metadata on a
// source and stamps its sync time. Missing sites or sources yield nil, nil.
func (s *Store) UpdateSourceChannel(ctx context.Context, siteID, sourceID uuid.UUID, info domain.ChannelInfo) (*domain.Site, error) {
	site, ok := s.site(siteID)
	if !ok {
		return nil, nil
	}
	found := false
	for _, src := range site.Sources {
		if src.ID == sourceID {
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	now := s.timestamp()
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		for i := range site.Sources {
			if site.Sources[i].ID == sourceID {
				site.Sources[i].Channel = info
				site.Sources[i].SyncedAt = &now
			}
		}
		site.UpdatedAt = now
	})
}

// RecordTraffic adds views and revenue (in cents) to a site's stats. Stats
// only grow, so negative deltas are rejected.
func (s *Store) RecordTraffic(ctx context.Context, siteID uuid.UUID, views, revenue int64) (*domain.Site, error) {
	const op = "store.record_traffic"

	if views < 0 || revenue < 0 {
		return nil, domain.Invalid(op, "views and revenue must not be negative")
	}
	return s.updateSite(ctx, siteID, func(site *domain.Site) {
		site.Stats.Views += views
		site.Stats.Revenue += revenue
	})
}

// updateSite applies fn to the site with the given id. It returns nil, nil
// when no such site exists.
func (s *Store) updateSite(ctx context.Context, siteID uuid.UUID, fn func(site *domain.Site)) (*domain.Site, error) {
	overlay := s.brandingOverlay(ctx)
	var updated *domain.Site
	err := s.update(ctx, func(st *domain.State) error {
		for i := range st.Sites {
			if st.Sites[i].ID == siteID {
				fn(&st.Sites[i])
				out := cloneSite(st.Sites[i])
				overlay(&out)
				updated = &out
				return nil
			}
		}
		return errNoChange
	})
	if err == errNoChange {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func newSource(params SourceParams, primary bool, now time.Time) domain.Source {
	platform := params.Platform
	if platform == "" {
		platform = domain.PlatformUnknown
	}
	return domain.Source{
		ID:        uuid.New(),
		Platform:  platform,
		URL:       params.URL,
		Channel:   params.Channel,
		IsPrimary: primary,
		AddedAt:   now,
	}
}

func newVerificationCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "STS-" + strings.ToUpper(id[:6])
}

// =============================================================================
// Site reads and aggregates
// =============================================================================

// brandingOverlay returns a function that sets a site's branding flag the
// way the policy dictates. Under BrandingLive the flag comes from the plan
// resolved now; under BrandingFreeze the stored flag is left alone.
func (s *Store) brandingOverlay(ctx context.Context) func(site *domain.Site) {
	if s.policy != BrandingLive {
		return func(*domain.Site) {}
	}
	branding := plan.Get(s.Plan(ctx)).BrandingEnabled()
	return func(site *domain.Site) {
		site.BrandingEnabled = branding
	}
}

// Sites returns a copy of every site.
func (s *Store) Sites(ctx context.Context) []domain.Site {
	overlay := s.brandingOverlay(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Site, len(s.state.Sites))
	for i, site := range s.state.Sites {
		out[i] = cloneSite(site)
		overlay(&out[i])
	}
	return out
}

// Site returns a copy of the site with the given id.
func (s *Store) Site(ctx context.Context, id uuid.UUID) (*domain.Site, bool) {
	site, ok := s.site(id)
	if ok {
		s.brandingOverlay(ctx)(site)
	}
	return site, ok
}

// site returns a copy of the stored site, branding flag as persisted.
func (s *Store) site(id uuid.UUID) (*domain.Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.state.Sites {
		if site.ID == id {
			out := cloneSite(site)
			return &out, true
		}
	}
	return nil, false
}

// SiteCount returns the number of sites.
func (s *Store) SiteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Sites)
}

// VerifiedSiteCount returns the number of verified sites.
func (s *Store) VerifiedSiteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, site := range s.state.Sites {
		if site.IsVerified {
			n++
		}
	}
	return n
}

// TotalViews sums views across all sites.
func (s *Store) TotalViews() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, site := range s.state.Sites {
		total += site.Stats.Views
	}
	return total
}

// TotalRevenue sums revenue, in cents, across all sites.
func (s *Store) TotalRevenue() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, site := range s.state.Sites {
		total += site.Stats.Revenue
	}
	return total
}

// CanCreateSite reports whether the active plan allows another site.
func (s *Store) CanCreateSite(ctx context.Context) bool {
	return plan.IsWithinLimit(s.Plan(ctx), domain.LimitMaxSites, int64(s.SiteCount()))
}
