package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/channel"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/metrics"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/storage"
	"github.com/DukeRupert/streamtosite/internal/store"
)

// SiteStore is the part of the state store the site service needs.
type SiteStore interface {
	Plan(ctx context.Context) domain.PlanID
	Sites(ctx context.Context) []domain.Site
	Site(ctx context.Context, id uuid.UUID) (*domain.Site, bool)
	CreateSite(ctx context.Context, params store.SourceParams) (*domain.Site, error)
	AddSourceToSite(ctx context.Context, siteID uuid.UUID, params store.SourceParams) (*domain.Site, error)
	DeleteSite(ctx context.Context, siteID uuid.UUID) error
	VerifySite(ctx context.Context, siteID uuid.UUID, method domain.VerificationMethod) error
	UpdateSiteTheme(ctx context.Context, siteID uuid.UUID, theme domain.ThemeID) (*domain.Site, error)
	SetCustomDomain(ctx context.Context, siteID uuid.UUID, host string) (*domain.Site, error)
	SetLogoURL(ctx context.Context, siteID uuid.UUID, url string) (*domain.Site, error)
	UpdateSourceChannel(ctx context.Context, siteID, sourceID uuid.UUID, info domain.ChannelInfo) (*domain.Site, error)
}

// SiteService defines the interface for site-related operations.
type SiteService interface {
	// Create imports a channel and builds a site around it.
	Create(ctx context.Context, channelURL string) (*domain.Site, error)

	// AddSource attaches another channel to an existing site.
	AddSource(ctx context.Context, siteID uuid.UUID, channelURL string) (*domain.Site, error)

	// Get retrieves a site by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Site, error)

	// List returns every site in creation order.
	List(ctx context.Context) ([]domain.Site, error)

	// Delete removes a site. Deleting a missing site succeeds.
	Delete(ctx context.Context, id uuid.UUID) error

	// Verify checks that the site's verification code is visible on the
	// primary channel and marks the site verified.
	Verify(ctx context.Context, id uuid.UUID, method domain.VerificationMethod) (*domain.Site, error)

	// UpdateTheme switches the site theme, if the plan includes it.
	UpdateTheme(ctx context.Context, id uuid.UUID, theme domain.ThemeID) (*domain.Site, error)

	// SetCustomDomain points a custom hostname at the site. An empty host
	// removes the custom domain.
	SetCustomDomain(ctx context.Context, id uuid.UUID, host string) (*domain.Site, error)

	// UploadLogo resizes and stores a logo image for the site.
	UploadLogo(ctx context.Context, id uuid.UUID, data io.Reader, contentType string) (*domain.Site, error)

	// SyncSources refreshes channel metadata for every source on the site.
	SyncSources(ctx context.Context, id uuid.UUID) (*domain.Site, error)
}

// siteService implements SiteService.
type siteService struct {
	store    SiteStore
	quota    QuotaService
	channels channel.Provider
	blobs    storage.Storage
	logos    LogoProcessor
	logger   *slog.Logger
}

// NewSiteService creates a new SiteService. quota enforces the plan's site
// limit, including any server-reported usage.
func NewSiteService(st SiteStore, quota QuotaService, channels channel.Provider, blobs storage.Storage, logos LogoProcessor, logger *slog.Logger) SiteService {
	return &siteService{
		store:    st,
		quota:    quota,
		channels: channels,
		blobs:    blobs,
		logos:    logos,
		logger:   logger,
	}
}

// =============================================================================
// Create / Sources
// =============================================================================

func (s *siteService) Create(ctx context.Context, channelURL string) (*domain.Site, error) {
	const op = "SiteService.Create"

	params, err := s.resolveSource(ctx, op, channelURL)
	if err != nil {
		return nil, err
	}

	if err := s.quota.CheckSiteQuota(ctx); err != nil {
		return nil, err
	}

	site, err := s.store.CreateSite(ctx, params)
	if err != nil {
		s.logger.Error("failed to create site", "error", err, "op", op)
		return nil, domain.Internal(err, op, "Failed to create site")
	}

	metrics.SitesCreated.Inc()
	return site, nil
}

func (s *siteService) AddSource(ctx context.Context, siteID uuid.UUID, channelURL string) (*domain.Site, error) {
	const op = "SiteService.AddSource"

	existing, ok := s.store.Site(ctx, siteID)
	if !ok {
		return nil, domain.NotFound(op, "site", siteID.String())
	}
	if existing.HasSource(strings.TrimSpace(channelURL)) {
		return nil, domain.Conflict(op, "This channel is already connected to the site.")
	}

	params, err := s.resolveSource(ctx, op, channelURL)
	if err != nil {
		return nil, err
	}

	site, err := s.store.AddSourceToSite(ctx, siteID, params)
	if err != nil {
		s.logger.Error("failed to add source", "error", err, "op", op, "site_id", siteID)
		return nil, domain.Internal(err, op, "Failed to add source")
	}
	if site == nil {
		return nil, domain.NotFound(op, "site", siteID.String())
	}
	return site, nil
}

// resolveSource detects the platform and fetches the channel behind url.
func (s *siteService) resolveSource(ctx context.Context, op, url string) (store.SourceParams, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return store.SourceParams{}, domain.Invalid(op, "Channel URL is required.")
	}

	platform := channel.DetectPlatform(url)
	if !platform.IsSupported() {
		return store.SourceParams{}, domain.Unsupported(op, "That URL is not a YouTube, TikTok or Facebook channel.")
	}

	info, err := s.channels.FetchChannel(ctx, url)
	if err != nil {
		metrics.ChannelLookups.WithLabelValues(string(platform), "error").Inc()
		return store.SourceParams{}, s.channelError(op, url, err)
	}
	metrics.ChannelLookups.WithLabelValues(string(platform), "ok").Inc()

	return store.SourceParams{URL: url, Platform: platform, Channel: *info}, nil
}

// channelError translates a provider failure into an application error.
func (s *siteService) channelError(op, url string, err error) error {
	switch {
	case errors.Is(err, channel.ErrUnsupportedPlatform):
		return domain.Wrap(err, domain.EINVALID, op, "We can't import channels from that platform yet.")
	case errors.Is(err, channel.ErrChannelNotFound):
		return domain.Wrap(err, domain.ENOTFOUND, op, "We couldn't find that channel.")
	case errors.Is(err, context.Canceled):
		return domain.Wrap(err, domain.EINTERNAL, op, "The request was cancelled.")
	case channel.IsRetryable(err):
		s.logger.Warn("channel provider unavailable", "error", err, "op", op, "url", url)
		return domain.Wrap(err, domain.EINTERNAL, op, "The platform is not responding. Please try again shortly.")
	default:
		s.logger.Error("channel lookup failed", "error", err, "op", op, "url", url)
		return domain.Internal(err, op, "Failed to look up channel")
	}
}

// =============================================================================
// Queries
// =============================================================================

func (s *siteService) Get(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	const op = "SiteService.Get"

	site, ok := s.store.Site(ctx, id)
	if !ok {
		return nil, domain.NotFound(op, "site", id.String())
	}
	return site, nil
}

func (s *siteService) List(ctx context.Context) ([]domain.Site, error) {
	return s.store.Sites(ctx), nil
}

func (s *siteService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "SiteService.Delete"

	site, ok := s.store.Site(ctx, id)
	if err := s.store.DeleteSite(ctx, id); err != nil {
		s.logger.Error("failed to delete site", "error", err, "op", op, "site_id", id)
		return domain.Internal(err, op, "Failed to delete site")
	}
	if ok && site.LogoURL != "" {
		s.deleteLogo(ctx, site)
	}
	return nil
}

// =============================================================================
// Verification
// =============================================================================

func (s *siteService) Verify(ctx context.Context, id uuid.UUID, method domain.VerificationMethod) (*domain.Site, error) {
	const op = "SiteService.Verify"

	if method == "" {
		method = domain.VerificationDescription
	}
	if !method.IsValid() {
		return nil, domain.Invalid(op, fmt.Sprintf("Unknown verification method %q.", method))
	}

	site, ok := s.store.Site(ctx, id)
	if !ok {
		return nil, domain.NotFound(op, "site", id.String())
	}
	if site.IsVerified {
		return site, nil
	}

	src := site.PrimarySource()
	if src == nil || src.Channel.ID == "" {
		return nil, domain.Invalid(op, "This site has no channel to verify.")
	}

	if err := s.channels.VerifyOwnership(ctx, src.Channel.ID, site.VerificationCode); err != nil {
		if errors.Is(err, channel.ErrCodeNotFound) {
			return nil, domain.Wrap(err, domain.EINVALID, op, fmt.Sprintf(
				"We couldn't find %s on your channel yet. Add it to your channel %s and try again.",
				site.VerificationCode, method))
		}
		return nil, s.channelError(op, src.URL, err)
	}

	if err := s.store.VerifySite(ctx, id, method); err != nil {
		s.logger.Error("failed to mark site verified", "error", err, "op", op, "site_id", id)
		return nil, domain.Internal(err, op, "Failed to verify site")
	}
	metrics.SitesVerified.Inc()

	verified, ok := s.store.Site(ctx, id)
	if !ok {
		return nil, domain.NotFound(op, "site", id.String())
	}
	return verified, nil
}

// =============================================================================
// Settings
// =============================================================================

func (s *siteService) UpdateTheme(ctx context.Context, id uuid.UUID, theme domain.ThemeID) (*domain.Site, error) {
	const op = "SiteService.UpdateTheme"

	if !theme.IsValid() {
		return nil, domain.Invalid(op, fmt.Sprintf("Unknown theme %q.", theme))
	}
	if !plan.AllowsTheme(s.store.Plan(ctx), theme) {
		metrics.FeatureGateDenials.WithLabelValues(string(domain.FeaturePremiumThemes)).Inc()
		return nil, domain.FeatureLocked(op, domain.FeaturePremiumThemes)
	}

	site, err := s.store.UpdateSiteTheme(ctx, id, theme)
	return s.siteResult(op, id, site, err)
}

func (s *siteService) SetCustomDomain(ctx context.Context, id uuid.UUID, host string) (*domain.Site, error) {
	const op = "SiteService.SetCustomDomain"

	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host != "" {
		if !plan.HasFeatureAccess(s.store.Plan(ctx), domain.FeatureCustomDomain) {
			metrics.FeatureGateDenials.WithLabelValues(string(domain.FeatureCustomDomain)).Inc()
			return nil, domain.FeatureLocked(op, domain.FeatureCustomDomain)
		}
		for _, other := range s.store.Sites(ctx) {
			if other.ID != id && other.CustomDomain == host {
				return nil, domain.Conflict(op, "That domain is already used by another site.")
			}
		}
	}

	site, err := s.store.SetCustomDomain(ctx, id, host)
	return s.siteResult(op, id, site, err)
}

func (s *siteService) UploadLogo(ctx context.Context, id uuid.UUID, data io.Reader, contentType string) (*domain.Site, error) {
	const op = "SiteService.UploadLogo"

	existing, ok := s.store.Site(ctx, id)
	if !ok {
		return nil, domain.NotFound(op, "site", id.String())
	}
	if !storage.IsAllowedLogoType(contentType) {
		return nil, domain.Invalid(op, "Logos must be JPEG, PNG or GIF images.")
	}

	maxMB := plan.GetLimit(s.store.Plan(ctx), domain.LimitMaxUploadSizeMB)
	src := data
	if maxMB != domain.Unlimited {
		src = io.LimitReader(data, maxMB<<20+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Failed to read upload")
	}
	if maxMB != domain.Unlimited && int64(len(raw)) > maxMB<<20 {
		metrics.LimitDenials.WithLabelValues(string(domain.LimitMaxUploadSizeMB)).Inc()
		sizeMB := (int64(len(raw)) + 1<<20 - 1) >> 20
		return nil, domain.LimitExceeded(op, domain.LimitMaxUploadSizeMB, sizeMB, maxMB)
	}

	out, width, height, err := s.logos.ProcessLogo(bytes.NewReader(raw), LogoMaxDimension)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "That file could not be read as an image.")
	}

	key := storage.LogoKey(id, ".png")
	if err := s.blobs.Put(ctx, key, bytes.NewReader(out), storage.PutOptions{
		ContentType: "image/png",
		Overwrite:   true,
		Public:      true,
	}); err != nil {
		s.logger.Error("failed to store logo", "error", err, "op", op, "site_id", id)
		return nil, domain.Internal(err, op, "Failed to store logo")
	}
	url, err := s.blobs.URL(ctx, key, 0)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to store logo")
	}

	site, err := s.store.SetLogoURL(ctx, id, url)
	if err != nil || site == nil {
		_ = s.blobs.Delete(ctx, key)
		return s.siteResult(op, id, site, err)
	}
	if existing.LogoURL != "" {
		s.deleteLogo(ctx, existing)
	}

	s.logger.Info("logo uploaded", "site_id", id, "key", key, "width", width, "height", height)
	return site, nil
}

// deleteLogo removes the blob behind site.LogoURL. Failures are logged only.
func (s *siteService) deleteLogo(ctx context.Context, site *domain.Site) {
	key := logoKeyFromURL(site.LogoURL, site.ID)
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete logo", "error", err, "site_id", site.ID, "key", key)
	}
}

// logoKeyFromURL recovers the storage key from a logo URL produced by
// UploadLogo, dropping any signing query string.
func logoKeyFromURL(url string, siteID uuid.UUID) string {
	url, _, _ = strings.Cut(url, "?")
	i := strings.Index(url, "sites/"+siteID.String()+"/")
	if i < 0 {
		return ""
	}
	return url[i:]
}

// =============================================================================
// Sync
// =============================================================================

func (s *siteService) SyncSources(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	const op = "SiteService.SyncSources"

	if !plan.HasFeatureAccess(s.store.Plan(ctx), domain.FeatureAutoSync) {
		return nil, domain.FeatureLocked(op, domain.FeatureAutoSync)
	}
	site, ok := s.store.Site(ctx, id)
	if !ok {
		return nil, domain.NotFound(op, "site", id.String())
	}

	for _, src := range site.Sources {
		info, err := s.channels.FetchChannel(ctx, src.URL)
		if err != nil {
			metrics.ChannelLookups.WithLabelValues(string(src.Platform), "error").Inc()
			return nil, s.channelError(op, src.URL, err)
		}
		metrics.ChannelLookups.WithLabelValues(string(src.Platform), "ok").Inc()
		if site, err = s.store.UpdateSourceChannel(ctx, id, src.ID, *info); err != nil {
			return nil, domain.Internal(err, op, "Failed to save channel details")
		}
		if site == nil {
			return nil, domain.NotFound(op, "site", id.String())
		}
	}

	s.logger.Info("sources synced", "site_id", id, "sources", len(site.Sources))
	return site, nil
}

// siteResult maps the store's nil-site convention to NotFound.
func (s *siteService) siteResult(op string, id uuid.UUID, site *domain.Site, err error) (*domain.Site, error) {
	if err != nil {
		s.logger.Error("failed to update site", "error", err, "op", op, "site_id", id)
		return nil, domain.Internal(err, op, "Failed to update site")
	}
	if site == nil {
		return nil, domain.NotFound(op, "site", id.String())
	}
	return site, nil
}
