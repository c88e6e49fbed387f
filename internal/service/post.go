package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/ai"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/metrics"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

// PostStore is the part of the state store the post service needs.
type PostStore interface {
	Plan(ctx context.Context) domain.PlanID
	Site(ctx context.Context, id uuid.UUID) (*domain.Site, bool)
	AddPost(ctx context.Context, params domain.CreatePostParams) (*domain.Post, error)
	UpdatePost(ctx context.Context, id uuid.UUID, params domain.UpdatePostParams) (*domain.Post, error)
	PublishPost(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	Posts(siteID uuid.UUID) []domain.Post
	Post(id uuid.UUID) (*domain.Post, bool)
}

// DraftRequest asks the co-pilot for a post on a site.
type DraftRequest struct {
	SiteID   uuid.UUID
	Topic    string
	VideoURL string
	Tone     ai.Tone
}

// PostService defines the interface for post-related operations.
type PostService interface {
	// Create adds a draft post, counting against the monthly post limit.
	Create(ctx context.Context, params domain.CreatePostParams) (*domain.Post, error)

	// Update edits a post's text. Status is never changed here.
	Update(ctx context.Context, id uuid.UUID, params domain.UpdatePostParams) (*domain.Post, error)

	// Publish makes a draft live. Publishing twice is a no-op.
	Publish(ctx context.Context, id uuid.UUID) (*domain.Post, error)

	// Get retrieves a post by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Post, error)

	// List returns the posts of a site, or of every site for uuid.Nil.
	List(ctx context.Context, siteID uuid.UUID) ([]domain.Post, error)

	// Draft has the AI co-pilot write a post and saves it as a draft.
	Draft(ctx context.Context, req DraftRequest) (*domain.Post, error)
}

// postService implements PostService.
type postService struct {
	store   PostStore
	quota   QuotaService
	copilot ai.Copilot
	logger  *slog.Logger
}

// NewPostService creates a new PostService. copilot may be nil, in which
// case Draft reports that drafting is unavailable.
func NewPostService(st PostStore, quota QuotaService, copilot ai.Copilot, logger *slog.Logger) PostService {
	return &postService{
		store:   st,
		quota:   quota,
		copilot: copilot,
		logger:  logger,
	}
}

func (s *postService) Create(ctx context.Context, params domain.CreatePostParams) (*domain.Post, error) {
	const op = "PostService.Create"

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, domain.NewValidationError(op, "title", "Title is required")
	}
	if _, ok := s.store.Site(ctx, params.SiteID); !ok {
		return nil, domain.NotFound(op, "site", params.SiteID.String())
	}
	if err := s.quota.CheckPostQuota(ctx); err != nil {
		return nil, err
	}

	return s.add(ctx, op, params)
}

func (s *postService) add(ctx context.Context, op string, params domain.CreatePostParams) (*domain.Post, error) {
	post, err := s.store.AddPost(ctx, params)
	if err != nil {
		s.logger.Error("failed to create post", "error", err, "op", op, "site_id", params.SiteID)
		return nil, domain.Internal(err, op, "Failed to create post")
	}
	if post == nil {
		return nil, domain.NotFound(op, "site", params.SiteID.String())
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, id uuid.UUID, params domain.UpdatePostParams) (*domain.Post, error) {
	const op = "PostService.Update"

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, domain.NewValidationError(op, "title", "Title cannot be empty")
		}
		params.Title = &title
	}

	post, err := s.store.UpdatePost(ctx, id, params)
	if err != nil {
		s.logger.Error("failed to update post", "error", err, "op", op, "post_id", id)
		return nil, domain.Internal(err, op, "Failed to update post")
	}
	if post == nil {
		return nil, domain.NotFound(op, "post", id.String())
	}
	return post, nil
}

func (s *postService) Publish(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	const op = "PostService.Publish"

	before, ok := s.store.Post(id)
	if !ok {
		return nil, domain.NotFound(op, "post", id.String())
	}

	post, err := s.store.PublishPost(ctx, id)
	if err != nil {
		s.logger.Error("failed to publish post", "error", err, "op", op, "post_id", id)
		return nil, domain.Internal(err, op, "Failed to publish post")
	}
	if post == nil {
		return nil, domain.NotFound(op, "post", id.String())
	}
	if !before.IsPublished() {
		metrics.PostsPublished.Inc()
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	const op = "PostService.Get"

	post, ok := s.store.Post(id)
	if !ok {
		return nil, domain.NotFound(op, "post", id.String())
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, siteID uuid.UUID) ([]domain.Post, error) {
	const op = "PostService.List"

	if siteID != uuid.Nil {
		if _, ok := s.store.Site(ctx, siteID); !ok {
			return nil, domain.NotFound(op, "site", siteID.String())
		}
	}
	return s.store.Posts(siteID), nil
}

func (s *postService) Draft(ctx context.Context, req DraftRequest) (*domain.Post, error) {
	const op = "PostService.Draft"

	if !plan.HasFeatureAccess(s.store.Plan(ctx), domain.FeatureAICopilot) {
		metrics.FeatureGateDenials.WithLabelValues(string(domain.FeatureAICopilot)).Inc()
		return nil, domain.FeatureLocked(op, domain.FeatureAICopilot)
	}
	if s.copilot == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "The AI co-pilot is not configured.")
	}

	site, ok := s.store.Site(ctx, req.SiteID)
	if !ok {
		return nil, domain.NotFound(op, "site", req.SiteID.String())
	}
	if err := s.quota.CheckPostQuota(ctx); err != nil {
		return nil, err
	}

	params := ai.DraftParams{
		Topic:    strings.TrimSpace(req.Topic),
		VideoURL: strings.TrimSpace(req.VideoURL),
		Tone:     req.Tone,
	}
	if src := site.PrimarySource(); src != nil {
		params.ChannelName = src.Channel.Name
		params.Category = src.Channel.Category
		params.Tags = src.Channel.Tags
	}

	draft, err := s.copilot.DraftPost(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, ai.EAIInvalidRequest):
			return nil, domain.Wrap(err, domain.EINVALID, op, "Give the co-pilot a topic or a video URL to write about.")
		case errors.Is(err, ai.EAIContentPolicy):
			return nil, domain.Wrap(err, domain.EINVALID, op, "The co-pilot declined to write about that topic.")
		case ai.IsRetryable(err):
			s.logger.Warn("copilot unavailable", "error", err, "op", op)
			return nil, domain.Wrap(err, domain.EINTERNAL, op, "The co-pilot is busy. Please try again in a moment.")
		default:
			s.logger.Error("copilot failed", "error", err, "op", op, "site_id", req.SiteID)
			return nil, domain.Internal(err, op, "Failed to draft post")
		}
	}

	return s.add(ctx, op, domain.CreatePostParams{
		SiteID:         req.SiteID,
		Title:          draft.Title,
		Excerpt:        draft.Excerpt,
		Content:        draft.Content,
		SourceVideoURL: params.VideoURL,
	})
}
